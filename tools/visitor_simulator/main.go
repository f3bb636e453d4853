package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/observability"
)

var (
	server       string
	host         string
	visitors     int
	totalReq     int
	conc         int
	duration     time.Duration
	rate         float64
	interactRate float64
	stats        bool
	flush        bool
	redisAddr    string
	cookieName   string
	debug        bool
	label        string
)

var logger *zap.Logger

var httpClient *http.Client

// place is a simulated visitor origin, sent through the ?test-* overrides.
type place struct {
	country, region, city, timezone string
}

var (
	places = []place{
		{"US", "VA", "Fairfax", "America/New_York"},
		{"US", "DC", "Washington", "America/New_York"},
		{"US", "CA", "San Francisco", "America/Los_Angeles"},
		{"US", "WA", "Seattle", "America/Los_Angeles"},
		{"US", "MN", "Rochester", "America/Chicago"},
		{"US", "OR", "Portland", "America/Los_Angeles"},
		{"US", "KS", "Wichita", "America/Chicago"},
		{"GB", "ENG", "London", "Europe/London"},
		{"DE", "BE", "Berlin", "Europe/Berlin"},
		{"IN", "KA", "Bengaluru", "Asia/Kolkata"},
	}
	slugs = []string{
		"/blog/migrating-to-drupal-10",
		"/blog/headless-drupal",
		"/work/building-once-ui-a-customizable-design-system",
		"/blog/react-server-components",
		"/blog/what-government-gets-wrong-about-website-migrations",
		"/work/section-508-audit",
		"/blog/civic-data-portals",
	}
	userAgents = []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:111.0) Gecko/20100101 Firefox/111.0",
	}
)

const statsInterval = 5 * time.Second

var (
	countSent         uint64
	countSuccess      uint64
	countErrors       uint64
	countInteractions uint64
	countInferred     uint64

	segMu    sync.Mutex
	segments = map[string]uint64{}
)

// simVisitor keeps a stable ID and origin across requests.
type simVisitor struct {
	id    string
	place place
	ua    string
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "affinity server base URL")
	flag.StringVar(&host, "host", "", "Host header to send (selects the site)")
	flag.IntVar(&visitors, "visitors", 100, "number of unique visitors")
	flag.IntVar(&totalReq, "requests", 1000, "total page views to send")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "page views per second (0 for unlimited)")
	flag.Float64Var(&interactRate, "interact-rate", 0.5, "probability a page view is a content page")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "delete visitor state from redis before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.StringVar(&cookieName, "cookie", "visitor_id", "visitor cookie name")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "visitor-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		flushVisitors()
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	pool := make([]simVisitor, visitors)
	for i := range pool {
		pool[i] = simVisitor{
			id:    uuid.NewString(),
			place: places[r.Intn(len(places))],
			ua:    userAgents[r.Intn(len(userAgents))],
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		interval = duration / time.Duration(totalReq)
	}

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					printStats()
					return
				}
			}
		}()
	}

	start := time.Now()
	next := start
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if interval > 0 {
			if now := time.Now(); now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(interval)
		}

		v := pool[r.Intn(len(pool))]
		path := ""
		if r.Float64() < interactRate {
			path = slugs[r.Intn(len(slugs))]
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(v simVisitor, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			pageView(v, path)
		}(v, path)
	}
	wg.Wait()
	close(done)
	if !stats {
		printStats()
	}
}

// flushVisitors removes visitor:* keys, leaving anything else in Redis alone.
func flushVisitors() {
	cfg := config.Load()
	addr := redisAddr
	if addr == "" {
		addr = cfg.RedisAddr
	}
	store, err := db.InitRedis(addr, cfg.VisitorTTL)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer store.Close()

	deleted := 0
	iter := store.Client.Scan(store.Ctx, 0, "visitor:*", 500).Iterator()
	for iter.Next(store.Ctx) {
		if err := store.Client.Del(store.Ctx, iter.Val()).Err(); err != nil {
			logger.Error("failed to delete key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		logger.Error("scan visitor keys", zap.Error(err))
	}
	logger.Info("redis visitor state flushed", zap.String("addr", addr), zap.Int("keys_deleted", deleted))
}

// pageView fetches the visitor context and, for content pages, reports the
// interaction.
func pageView(v simVisitor, path string) {
	atomic.AddUint64(&countSent, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	q := url.Values{}
	q.Set("test-geo", v.place.country)
	q.Set("test-region", v.place.region)
	q.Set("test-city", v.place.city)
	q.Set("test-timezone", v.place.timezone)

	var vc struct {
		Segment  string `json:"segment"`
		Interest string `json:"interest"`
	}
	if err := call(ctx, v, http.MethodGet, "/api/visitor-context?"+q.Encode(), nil, &vc); err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("visitor context", zap.Error(err))
		return
	}
	segMu.Lock()
	segments[vc.Segment]++
	segMu.Unlock()

	if path != "" {
		var res struct {
			Interest string `json:"interest"`
			Inferred bool   `json:"inferred"`
		}
		body, _ := json.Marshal(map[string]string{"path": path})
		if err := call(ctx, v, http.MethodPost, "/api/interactions", body, &res); err != nil {
			atomic.AddUint64(&countErrors, 1)
			logger.Error("interaction", zap.Error(err))
			return
		}
		atomic.AddUint64(&countInteractions, 1)
		if res.Inferred {
			atomic.AddUint64(&countInferred, 1)
		}
	}

	atomic.AddUint64(&countSuccess, 1)
	logger.Debug("page view",
		zap.String("visitor", v.id),
		zap.String("city", v.place.city),
		zap.String("segment", vc.Segment),
		zap.String("path", path))
}

func call(ctx context.Context, v simVisitor, method, path string, body []byte, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(server, "/")+path, rd)
	if err != nil {
		return err
	}
	if host != "" {
		req.Host = host
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", v.ua)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: v.id})

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func printStats() {
	segMu.Lock()
	bySegment := make(map[string]uint64, len(segments))
	for k, v := range segments {
		bySegment[k] = v
	}
	segMu.Unlock()

	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sent", atomic.LoadUint64(&countSent)),
		zap.Uint64("success", atomic.LoadUint64(&countSuccess)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)),
		zap.Uint64("interactions", atomic.LoadUint64(&countInteractions)),
		zap.Uint64("inferred", atomic.LoadUint64(&countInferred)),
		zap.Any("segments", bySegment))
}
