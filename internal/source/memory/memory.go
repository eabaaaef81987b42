package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aptprice/internal/core"
	"aptprice/internal/source"
	"aptprice/internal/source/rtms"
)

// Store serves recorded RTMS responses without network access. Bodies are
// looked up in memory first, then as <dir>/<LAWD_CD>_<DEAL_YMD>.xml.
type Store struct {
	mu     sync.Mutex
	dir    string
	bodies map[string][]byte
	calls  int
}

var _ source.TransactionFetcher = (*Store)(nil)

// Key returns the lookup key for a region and period.
func Key(region string, ym core.YearMonth) string {
	return region + "_" + ym.String()
}

func New(bodies map[string][]byte) *Store {
	s := &Store{bodies: make(map[string][]byte, len(bodies))}
	for k, v := range bodies {
		s.bodies[k] = v
	}
	return s
}

func NewFromFiles(dir string) *Store {
	s := New(nil)
	s.dir = dir
	return s
}

// Put records a response body for region and period.
func (s *Store) Put(region string, ym core.YearMonth, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[Key(region, ym)] = body
}

// Fetch parses the recorded body with the same rules as the live client.
// A period with no recording is an empty result.
func (s *Store) Fetch(_ context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	if err := q.Validate(); err != nil {
		return core.FetchResult{}, err
	}

	body, err := s.body(Key(q.RegionCode, q.YearMonth))
	if err != nil {
		return core.FetchResult{}, &core.FetchError{Kind: core.FetchTransport, Err: err}
	}
	res := core.FetchResult{Query: q, FetchedAt: time.Now()}
	if body == nil {
		return res, nil
	}

	items, total, err := rtms.ParseResponse(body)
	if err != nil {
		return core.FetchResult{}, err
	}
	res.Items = items
	res.TotalCount = total
	res.Truncated = total > len(items)
	return res, nil
}

// Calls reports how many fetches reached the store.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) body(key string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	b, ok := s.bodies[key]
	dir := s.dir
	s.mu.Unlock()
	if ok {
		return b, nil
	}
	if dir == "" {
		return nil, nil
	}

	b, err := os.ReadFile(filepath.Join(dir, key+".xml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", key, err)
	}
	return b, nil
}
