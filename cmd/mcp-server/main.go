package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/logic/affinity"
	"github.com/varunity/affinityserve/internal/logic/reorder"
	"github.com/varunity/affinityserve/internal/logic/segment"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
)

type ClassifyLocationInput struct {
	CountryCode string `json:"country_code"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
}

type ClassifyLocationOutput struct {
	Segment models.Segment `json:"segment"`
	Rule    string         `json:"rule"`
}

type ResolveProfileInput struct {
	Segment  string `json:"segment"`
	Interest string `json:"interest,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type ResolveProfileOutput struct {
	Mode             string                 `json:"mode"`
	Profile          models.AffinityProfile `json:"profile"`
	CombinedGreeting string                 `json:"combined_greeting"`
}

type ReorderContentInput struct {
	Site     string   `json:"site"`
	Featured string   `json:"featured,omitempty"`
	Range    string   `json:"range,omitempty"`
	Exclude  []string `json:"exclude,omitempty"`
}

type ReorderContentOutput struct {
	Items    []string `json:"items"`
	Featured bool     `json:"featured"`
}

// AffinityServer answers rule questions without a running HTTP service.
type AffinityServer struct {
	classifier *segment.Classifier
	content    models.ContentStore
	logger     *zap.Logger
	now        func() time.Time
}

// ClassifyLocation reports the segment and the rule that matched.
func (s *AffinityServer) ClassifyLocation(ctx context.Context, req *mcp.CallToolRequest, input ClassifyLocationInput) (*mcp.CallToolResult, ClassifyLocationOutput, error) {
	cc := strings.ToUpper(strings.TrimSpace(input.CountryCode))
	if cc == "" {
		return nil, ClassifyLocationOutput{}, fmt.Errorf("country_code is required")
	}
	seg, rule := s.classifier.ClassifyWithRule(models.Location{
		CountryCode: cc,
		Region:      strings.ToUpper(input.Region),
		City:        input.City,
	})
	s.logger.Debug("classified location", zap.String("country", cc), zap.String("segment", string(seg)))
	return nil, ClassifyLocationOutput{Segment: seg, Rule: rule}, nil
}

// ResolveProfile returns the profile a visitor would be shown.
func (s *AffinityServer) ResolveProfile(ctx context.Context, req *mcp.CallToolRequest, input ResolveProfileInput) (*mcp.CallToolResult, ResolveProfileOutput, error) {
	seg, ok := models.ParseSegment(input.Segment)
	if !ok {
		return nil, ResolveProfileOutput{}, fmt.Errorf("unknown segment %q", input.Segment)
	}
	interest := models.InterestNone
	if input.Interest != "" {
		if interest, ok = models.ParseInterest(input.Interest); !ok {
			return nil, ResolveProfileOutput{}, fmt.Errorf("unknown interest %q", input.Interest)
		}
	}
	mode := input.Mode
	if mode == "" {
		mode = models.ProfileModeInterestAware
	}
	r, err := affinity.ForMode(mode)
	if err != nil {
		return nil, ResolveProfileOutput{}, err
	}
	return nil, ResolveProfileOutput{
		Mode:             r.Mode(),
		Profile:          r.Resolve(seg, interest),
		CombinedGreeting: r.CombinedGreeting(seg, input.Timezone, s.now()),
	}, nil
}

// ReorderContent shows the order a site's content would be listed in.
func (s *AffinityServer) ReorderContent(ctx context.Context, req *mcp.CallToolRequest, input ReorderContentInput) (*mcp.CallToolResult, ReorderContentOutput, error) {
	rng, err := reorder.ParseRange(input.Range, reorder.DefaultRange)
	if err != nil {
		return nil, ReorderContentOutput{}, err
	}
	items := s.content.GetContent(input.Site)
	res := reorder.Reorder(items, input.Featured, input.Featured != "", rng, input.Exclude)

	out := ReorderContentOutput{Items: make([]string, 0, len(res.Items)), Featured: res.Featured}
	for _, it := range res.Items {
		out.Items = append(out.Items, it.Slug)
	}
	return nil, out, nil
}

func newMCPServer(s *AffinityServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "affinityserve",
		Version: "1.0.0",
	}, nil)

	segments := make([]string, len(models.Segments))
	for i, seg := range models.Segments {
		segments[i] = string(seg)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_location",
		Description: "Classify a country/region/city into an audience segment",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"country_code": map[string]interface{}{"type": "string", "description": "ISO 3166-1 alpha-2 code"},
				"region":       map[string]interface{}{"type": "string", "description": "Region or state code"},
				"city":         map[string]interface{}{"type": "string"},
			},
			"required": []string{"country_code"},
		},
	}, s.ClassifyLocation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_profile",
		Description: "Resolve the affinity profile for a segment and optional interest",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"segment":  map[string]interface{}{"type": "string", "enum": segments},
				"interest": map[string]interface{}{"type": "string", "enum": []string{"frontend", "drupal", "govtech", "general"}},
				"mode":     map[string]interface{}{"type": "string", "enum": []string{models.ProfileModeInterestAware, models.ProfileModeGeoOnly}},
				"timezone": map[string]interface{}{"type": "string", "description": "IANA zone for the time-of-day greeting"},
			},
			"required": []string{"segment"},
		},
	}, s.ResolveProfile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reorder_content",
		Description: "List a site's content in display order with an optional featured item promoted",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"site":     map[string]interface{}{"type": "string"},
				"featured": map[string]interface{}{"type": "string", "description": "Featured content path, e.g. /work/<slug>"},
				"range":    map[string]interface{}{"type": "string", "description": "1-based inclusive range, e.g. 1,3"},
				"exclude":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required": []string{"site"},
		},
	}, s.ReorderContent)

	return server
}

func main() {
	// stdout carries the protocol, so logs go to stderr
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("affinityserve-mcp").With(zap.String("service", "affinityserve-mcp"))

	cfg := config.Load()
	ctx := context.Background()

	var src db.CatalogSource = db.FileCatalog{Path: cfg.CatalogFile}
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, 2, 1, 30*time.Minute, time.Minute)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		src = pg
	}

	content := models.NewInMemoryContentStore()
	catalog := db.NewCatalog(src, content, observability.NewNoOpRegistry(), logger)
	if err := catalog.Reload(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	server := newMCPServer(&AffinityServer{
		classifier: segment.NewClassifier(cfg.HomeCountry),
		content:    content,
		logger:     logger,
		now:        time.Now,
	})

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio")
	if err := server.Run(ctx, transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
