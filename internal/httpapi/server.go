package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
	"webllmd/internal/manager"
	"webllmd/pkg/types"
)

//go:embed assets
var assets embed.FS

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	ModelOptions() types.OptionsResponse
	Status() types.StatusResponse
	Ready() bool
	Select(id string) error
	SelectCoordinate(co catalog.Coordinate) (string, error)
	Load(ctx context.Context) error
	LoadAndWait(ctx context.Context) error
	Complete(ctx context.Context, msgs []bridge.Message, temperature float64) (*manager.Stream, error)
	DefaultTemperature() float64
	RefreshCatalog(ctx context.Context, src catalog.Source) (int, error)
}

// EventSource feeds GET /events.
type EventSource interface {
	Subscribe(buf int) (<-chan manager.Event, func())
}

// Options wires the optional parts of the mux.
type Options struct {
	// Bridge serves the engine host websocket at /bridge.
	Bridge http.Handler
	// Events backs GET /events; nil disables the route.
	Events EventSource
	// CatalogSource backs POST /models/refresh; nil disables the route.
	CatalogSource catalog.Source
}

// sseHeartbeat keeps idle /events streams alive through proxies.
const sseHeartbeat = 15 * time.Second

var validRoles = map[string]bool{"system": true, "user": true, "assistant": true}

func NewMux(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "Authorization", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	static, _ := fs.Sub(assets, "assets")
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeFileFS(w, r, static, "index.html")
	})
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServerFS(static)))

	r.Get("/bridge", func(w http.ResponseWriter, r *http.Request) {
		if opts.Bridge == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "bridge not configured")
			return
		}
		opts.Bridge.ServeHTTP(w, r)
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/models/options", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.ModelOptions())
	})

	if opts.CatalogSource != nil {
		r.Post("/models/refresh", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := workContext(r)
			defer cancel()
			n, err := svc.RefreshCatalog(ctx, opts.CatalogSource)
			if err != nil {
				writeJSONError(w, http.StatusBadGateway, "catalog refresh failed: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.RefreshResponse{Models: n})
		})
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectRequest
		if id := catalog.SelectionFromValues(r.URL.Query()); id != "" {
			req.ModelSlug = id
		} else if !decodeJSON(w, r, &req, false) {
			return
		}
		var err error
		switch {
		case req.ModelSlug != "":
			err = svc.Select(req.ModelSlug)
		case req.Family != "":
			_, err = svc.SelectCoordinate(catalog.Coordinate{Family: req.Family, Size: req.Size, Quantization: req.Quantization})
		default:
			writeJSONError(w, http.StatusBadRequest, "model_slug or family is required")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		if !req.Wait {
			if err := svc.Load(r.Context()); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, svc.Status())
			return
		}
		ctx, cancel := workContext(r)
		defer cancel()
		if err := svc.LoadAndWait(ctx); err != nil {
			if r.Context().Err() != nil {
				return
			}
			if shuttingDown() {
				writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				writeJSONError(w, http.StatusGatewayTimeout, "load did not finish in time")
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		chatCompletions(svc, w, r)
	})

	if opts.Events != nil {
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			serveEvents(opts.Events, w, r)
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func chatCompletions(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.ChatCompletionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages is required")
		return
	}
	msgs := make([]bridge.Message, len(req.Messages))
	for i, m := range req.Messages {
		if !validRoles[m.Role] {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
			return
		}
		msgs[i] = bridge.Message{Role: m.Role, Content: m.Content}
	}
	temp := svc.DefaultTemperature()
	if req.Temperature != nil {
		temp = *req.Temperature
		if temp < 0 || temp > 2 {
			writeJSONError(w, http.StatusBadRequest, "temperature must be within [0,2]")
			return
		}
	}
	model := svc.Status().ModelSlug
	if req.Model != "" && req.Model != model {
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("model %q is not the selected engine %q", req.Model, model))
		return
	}

	ctx, cancel := workContext(r)
	defer cancel()
	stream, err := svc.Complete(ctx, msgs, temp)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	debug := debugEnabled(r)
	if !req.Stream {
		text, err := stream.Collect(ctx)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			if shuttingDown() {
				writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
				return
			}
			writeError(w, err)
			return
		}
		if debug {
			logger().Debug().Str("id", id).Str("text", text).Msg("completion")
		}
		writeJSON(w, http.StatusOK, types.ChatCompletionResponse{
			ID:      id,
			Object:  "chat.completion",
			Created: created,
			Model:   model,
			Choices: []types.CompletionChoice{{
				Message:      types.Message{Role: "assistant", Content: text},
				FinishReason: stream.FinishReason(),
			}},
		})
		return
	}

	sse := newSSEWriter(w)
	chunk := func(delta types.ChunkDelta, finish *string) types.ChatCompletionChunk {
		return types.ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []types.ChunkChoice{{Delta: delta, FinishReason: finish}},
		}
	}
	if err := sse.data(chunk(types.ChunkDelta{Role: "assistant"}, nil)); err != nil {
		return
	}
	for {
		d, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			reason := stream.FinishReason()
			if sse.data(chunk(types.ChunkDelta{}, &reason)) == nil {
				_ = sse.done()
			}
			return
		}
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			_ = sse.event("error", types.ErrorResponse{Error: err.Error(), Code: statusOf(err)})
			return
		}
		if debug {
			logger().Debug().Str("id", id).Str("delta", d).Msg("completion delta")
		}
		if err := sse.data(chunk(types.ChunkDelta{Content: d}, nil)); err != nil {
			return
		}
	}
}

func serveEvents(src EventSource, w http.ResponseWriter, r *http.Request) {
	events, cancel := src.Subscribe(32)
	defer cancel()
	sse := newSSEWriter(w)
	sse.flush()
	hb := time.NewTicker(sseHeartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-serverBaseCtx.Done():
			return
		case <-hb.C:
			if sse.comment("ping") != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if sse.event(e.Name, e) != nil {
				return
			}
		}
	}
}

// sseWriter frames server-sent events.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, f: f}
}

func (s *sseWriter) flush() {
	if s.f != nil {
		s.f.Flush()
	}
}

func (s *sseWriter) write(b []byte) error {
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write([]byte("data: " + string(b) + "\n\n"))
}

func (s *sseWriter) event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write([]byte("event: " + name + "\ndata: " + string(b) + "\n\n"))
}

func (s *sseWriter) comment(text string) error {
	return s.write([]byte(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n"))
}

func (s *sseWriter) done() error { return s.write([]byte("data: [DONE]\n\n")) }

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
