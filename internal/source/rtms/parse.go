package rtms

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"aptprice/internal/core"
)

var (
	errMissingResultCode = errors.New("response header has no resultCode")
	successCodes         = map[string]bool{"00": true, "000": true}
)

// ParseResponse decodes an RTMS XML body.
//
// It returns the items in document order and the reported totalCount
// (len(items) when the body omits it). Non-success result codes yield a
// rejected *core.FetchError; bodies without a result code or that are not
// XML yield a malformed *core.FetchError carrying the raw body.
func ParseResponse(body []byte) ([]core.RawItem, int, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, 0, malformed(body, err)
	}

	// data.go.kr gateway errors (bad key, quota) use a different envelope.
	if hdr := xmlquery.FindOne(doc, "//cmmMsgHeader"); hdr != nil {
		msg := childText(hdr, "returnAuthMsg")
		if msg == "" {
			msg = childText(hdr, "errMsg")
		}
		return nil, 0, &core.FetchError{
			Kind:    core.FetchRejected,
			Code:    childText(hdr, "returnReasonCode"),
			Message: msg,
		}
	}

	codeNode := xmlquery.FindOne(doc, "//header/resultCode")
	if codeNode == nil {
		return nil, 0, malformed(body, errMissingResultCode)
	}
	code := strings.TrimSpace(codeNode.InnerText())
	if code == "" {
		return nil, 0, malformed(body, errMissingResultCode)
	}
	if !successCodes[code] {
		var msg string
		if n := xmlquery.FindOne(doc, "//header/resultMsg"); n != nil {
			msg = strings.TrimSpace(n.InnerText())
		}
		return nil, 0, &core.FetchError{Kind: core.FetchRejected, Code: code, Message: msg}
	}

	nodes := xmlquery.Find(doc, "//body/items/item")
	items := make([]core.RawItem, 0, len(nodes))
	for _, n := range nodes {
		it := core.RawItem{}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type != xmlquery.ElementNode {
				continue
			}
			it[ch.Data] = strings.TrimSpace(ch.InnerText())
		}
		items = append(items, it)
	}

	total := len(items)
	if n := xmlquery.FindOne(doc, "//body/totalCount"); n != nil {
		if v, err := strconv.Atoi(strings.TrimSpace(n.InnerText())); err == nil && v >= 0 {
			total = v
		}
	}
	return items, total, nil
}

func malformed(body []byte, err error) *core.FetchError {
	return &core.FetchError{Kind: core.FetchMalformed, Body: body, Err: err}
}

func childText(n *xmlquery.Node, name string) string {
	if c := n.SelectElement(name); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}
