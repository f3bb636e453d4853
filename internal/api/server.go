package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/geo"
	"github.com/varunity/affinityserve/internal/logic/ratelimit"
	"github.com/varunity/affinityserve/internal/middleware"
	"github.com/varunity/affinityserve/internal/newsletter"
	"github.com/varunity/affinityserve/internal/observability"
	"github.com/varunity/affinityserve/internal/personalization"
)

var tracer = otel.Tracer("affinityserve")

// CatalogUpdateChannel is the Redis channel other instances listen on to
// reload the catalogue after POST /reload.
const CatalogUpdateChannel = "catalog-updates"

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger       *zap.Logger
	Engine       *personalization.Engine
	Newsletter   *newsletter.Service
	Catalog      *db.Catalog
	Store        *db.RedisStore
	Metrics      observability.MetricsRegistry
	Config       config.Config
	Interactions *ratelimit.KeyedLimiter
	reloadMu     sync.Mutex
}

// NewServer constructs a Server. catalog and store may be nil.
func NewServer(logger *zap.Logger, engine *personalization.Engine, nl *newsletter.Service, catalog *db.Catalog, store *db.RedisStore, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:     logger,
		Engine:     engine,
		Newsletter: nl,
		Catalog:    catalog,
		Store:      store,
		Metrics:    metrics,
		Config:     cfg,
		Interactions: ratelimit.NewKeyedLimiter("interactions", ratelimit.Config{
			Capacity:   cfg.InteractionRateCapacity,
			RefillRate: cfg.InteractionRateRefill,
			Enabled:    cfg.InteractionRateEnabled,
		}, metrics),
	}
}

// Reload refreshes the content catalogue from its source.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.Catalog == nil {
		return fmt.Errorf("catalog unavailable")
	}
	return s.Catalog.Reload(ctx)
}

type updateMessage struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

func (s *Server) notifyUpdate(ctx context.Context, entity, action string) {
	if s.Store == nil || s.Store.Client == nil {
		return
	}
	payload, err := json.Marshal(updateMessage{Entity: entity, Action: action, ID: uuid.NewString()})
	if err != nil {
		s.Logger.Error("failed to marshal update message", zap.Error(err))
		return
	}
	if err := s.Store.Client.Publish(ctx, CatalogUpdateChannel, payload).Err(); err != nil {
		s.Logger.Error("failed to publish update message", zap.Error(err))
	}
}

// SubscribeUpdates reloads the catalogue whenever another instance publishes
// on CatalogUpdateChannel. It returns when ctx is done.
func (s *Server) SubscribeUpdates(ctx context.Context) {
	if s.Store == nil || s.Store.Client == nil {
		return
	}
	sub := s.Store.Client.Subscribe(ctx, CatalogUpdateChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m updateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				s.Logger.Warn("bad update message", zap.Error(err))
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.Logger.Error("reload on update", zap.Error(err), zap.String("id", m.ID))
			}
		}
	}
}

// personalizationRequest collects the engine inputs from r.
func (s *Server) personalizationRequest(r *http.Request) personalization.Request {
	q := r.URL.Query()
	// The page's own script calls this endpoint, so the Referer header names
	// the page itself. The external referrer arrives as a parameter.
	referrer := q.Get("referrer")
	if referrer == "" {
		referrer = r.Referer()
	}
	return personalization.Request{
		Host:          r.Host,
		Header:        r.Header,
		ClientIP:      geo.ClientIP(r),
		VisitorID:     middleware.VisitorIDFromContext(r.Context()),
		InterestParam: q.Get("interest"),
		Referrer:      referrer,
		UserAgent:     r.UserAgent(),
		RequestID:     r.Header.Get("X-Request-Id"),
		Debug:         q.Get("debug") == "1",
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody validates the raw body against schema and decodes it into v.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, v interface{}) error {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
