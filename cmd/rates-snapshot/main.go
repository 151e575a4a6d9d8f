// Command rates-snapshot downloads the exchange rate feed once and stores it
// as a gzip file the server can read with ORDERFORM_RATES_SNAPSHOT.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bike-order-form/internal/kurzy"
	"github.com/xenking/bike-order-form/internal/rates"
)

func main() {
	var (
		url     string
		out     string
		timeout time.Duration
	)

	flag.StringVar(&url, "url", kurzy.DefaultURL, "exchange rate feed URL")
	flag.StringVar(&out, "out", "rates.json.gz", "snapshot file to write")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "feed request timeout")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, url, out, timeout); err != nil {
		slog.Error("rates snapshot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, url, out string, timeout time.Duration) error {
	client := kurzy.NewClient(url, &http.Client{Timeout: timeout})

	slog.Info("fetching exchange rates", slog.String("url", client.URL()))
	tbl, err := client.Fetch(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch rates")
	}
	if tbl.Len() == 0 {
		return errors.New("feed returned no rates")
	}

	if err := rates.WriteSnapshot(out, tbl); err != nil {
		return errors.Wrap(err, "write snapshot")
	}

	slog.Info("snapshot written",
		slog.String("path", out),
		slog.String("bank", tbl.Bank()),
		slog.Int("rates", tbl.Len()),
	)
	return nil
}
