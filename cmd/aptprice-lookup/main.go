// Command aptprice-lookup prints one region/month of apartment trades, or a
// single building's trend, to the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"aptprice/internal/backend"
	"aptprice/internal/cli"
	"aptprice/internal/config"
	"aptprice/internal/core"
	apphttp "aptprice/internal/http"
	applog "aptprice/internal/log"
	"aptprice/internal/services"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg := cli.LoadAndValidateConfig()

	var (
		region   = flag.String("region", "11680", "5-digit LAWD_CD region code")
		ym       = flag.String("ym", "", "deal month as YYYYMM or YYYY-MM")
		key      = flag.String("key", cfg.RTMSServiceKey, "service key (defaults to RTMS_SERVICE_KEY)")
		building = flag.String("history", "", "building name; prints its trend instead of the month")
		months   = flag.Int("months", cfg.HistoryMonths, "months to walk back for -history")
		asJSON   = flag.Bool("json", false, "print JSON instead of a table")
	)
	flag.Parse()

	// Keep stdout for results.
	cfg.LogLevel = "warn"
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := lookupOptions{
		region:   *region,
		ym:       *ym,
		key:      *key,
		building: *building,
		months:   *months,
		json:     *asJSON,
	}
	if err := run(ctx, logger, cfg, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", core.ErrorKind(err), err)
		var ve *core.ValidationError
		if errors.As(err, &ve) || errors.Is(err, core.ErrMissingCredential) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type lookupOptions struct {
	region, ym, key string
	building        string
	months          int
	json            bool
}

func run(ctx context.Context, logger *applog.Logger, cfg *config.Config, opts lookupOptions, out io.Writer) error {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backendConfig.UserAgent = "aptprice-lookup/1.0"
	result, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	if opts.building != "" {
		anchor, err := core.ParseYearMonth(opts.ym)
		if err != nil {
			return err
		}
		svc := services.NewHistoryService(result.Fetcher, services.HistoryOptions{Pause: services.DefaultHistoryPause, Logger: logger})
		res, err := svc.FetchHistory(ctx, services.HistoryRequest{
			Building:   opts.building,
			RegionCode: opts.region,
			Anchor:     anchor,
			MonthsBack: opts.months,
			Credential: opts.key,
		})
		if err != nil {
			return err
		}
		if opts.json {
			return writeJSON(out, apphttp.HistoryJSON(res))
		}
		return printHistory(out, res)
	}

	q, err := core.NewQuery(opts.region, opts.ym, opts.key)
	if err != nil {
		return err
	}
	res, err := services.NewLookupService(result.Fetcher, logger).Lookup(ctx, q)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(out, apphttp.LookupJSON(res))
	}
	return printLookup(out, res)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLookup(out io.Writer, res services.LookupResult) error {
	if res.Empty {
		_, err := fmt.Fprintf(out, "%s: no trades\n", res.Query)
		return err
	}
	fmt.Fprintf(out, "%s: %d trades", res.Query, res.Summary.Count)
	if res.Truncated {
		fmt.Fprintf(out, " (of %s)", humanize.Comma(int64(res.TotalCount)))
	}
	fmt.Fprintf(out, "\nmean %s / max %s / min %s (만원)\n\n",
		humanize.Comma(int64(res.Summary.Mean+0.5)), humanize.Comma(res.Summary.Max), humanize.Comma(res.Summary.Min))
	return printTable(out, res.Transactions, true)
}

func printHistory(out io.Writer, res services.HistoryResult) error {
	fmt.Fprintf(out, "%s %s..%s: %d trades, %d months skipped\n\n",
		res.Building, res.From.Label(), res.To.Label(), len(res.Transactions), len(res.Skipped))
	if res.Empty() {
		return nil
	}
	return printTable(out, res.Transactions, false)
}

func printTable(out io.Writer, ts []core.Transaction, withName bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	if withName {
		fmt.Fprint(tw, "name\t")
	}
	fmt.Fprintln(tw, "date\tamount\tarea\tfloor\tbuilt\t")
	for _, t := range ts {
		if withName {
			fmt.Fprintf(tw, "%s\t", t.Name)
		}
		date := "-"
		if !t.DealDate.IsEmpty() {
			date = t.DealDate.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			date, humanize.Comma(t.DealAmount), optFloat(t.ExclusiveAreaSqm), optInt(t.Floor), optInt(t.BuildYear))
	}
	return tw.Flush()
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
