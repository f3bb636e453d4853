package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/observability"
)

func main() {
	logger, err := observability.InitLoggerWithService("query-events")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var (
		visitorID string
		site      string
		since     time.Duration
		limit     int
		dsn       string
	)
	flag.StringVar(&visitorID, "visitor", "", "list events for a visitor ID")
	flag.StringVar(&site, "site", "", "break down visitor contexts by segment for a site")
	flag.DurationVar(&since, "since", 24*time.Hour, "breakdown window")
	flag.IntVar(&limit, "limit", 100, "maximum events to list")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.Parse()

	if visitorID == "" && site == "" {
		fmt.Fprintln(os.Stderr, "one of -visitor or -site is required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}

	a, err := analytics.InitClickHouse(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result interface{}
	if visitorID != "" {
		result, err = a.EventsByVisitor(ctx, visitorID, limit)
	} else {
		result, err = a.SegmentBreakdown(ctx, site, time.Now().Add(-since))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
