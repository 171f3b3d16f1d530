package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/serializer"
	"github.com/ValentinKolb/walkv/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/http")

// maxBodySize bounds the size of a value sent with PUT
const maxBodySize = 16 * 1024 * 1024 // 16 MB

// NewHttpServerTransport creates a new HTTP front end
func NewHttpServerTransport() transport.IServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.Handler
	config  common.ServerConfig

	mu     sync.Mutex
	server *http.Server
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) GetName() string {
	return "http"
}

func (t *httpServerTransport) RegisterHandler(handler transport.Handler) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) (net.Listener, error) {
	t.config = config

	listener, err := net.Listen("tcp", config.HTTPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create http socket: %w", err)
	}
	return listener, nil
}

func (t *httpServerTransport) Serve(l net.Listener) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	t.mu.Lock()
	if t.server == nil {
		t.server = &http.Server{
			Handler:           t.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		if t.config.TimeoutSecond > 0 {
			t.server.IdleTimeout = time.Duration(t.config.TimeoutSecond) * time.Second
		}
	}
	server := t.server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", l.Addr())

	if err := server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	server := t.server
	if server == nil {
		// a later Serve must not start
		t.server = &http.Server{}
		server = t.server
	}
	t.mu.Unlock()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	Logger.Infof("HTTP server stopped")
	return nil
}

// Router returns the chi router with all routes of the HTTP API:
//
//	PUT    /kv/{key}                  body is the value
//	GET    /kv/{key}                  value as text/plain
//	DELETE /kv/{key}
//	GET    /range?start=..&end=..     JSON list of pairs
//	GET    /keys?needle=..            JSON list of keys
//	GET    /values?needle=..          JSON list of values
//	GET    /amount                    {"amount": n}
//	GET    /dump                      JSON list of pairs
//	GET    /info                      store metadata
//	POST   /shutdown                  stops the server
//	GET    /metrics                   Prometheus metrics
//
// Command responses are sent as application/json, application/x-gob or
// application/octet-stream (package serializer) if the Accept header asks
// for one of them.
func (t *httpServerTransport) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if t.config.LogLevel == "debug" {
		r.Use(loggerMiddleware)
	}

	r.Route("/kv", func(r chi.Router) {
		r.Put("/*", t.handlePut)
		r.Get("/*", t.handleGet)
		r.Delete("/*", t.handleDelete)
	})

	r.Get("/range", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has("start") || !q.Has("end") {
			writeError(w, store.NewError(store.RetCInvalidCommand, "range needs the start and end parameters"))
			return
		}
		t.execute(w, r, command.Range{Start: q.Get("start"), End: q.Get("end")})
	})
	r.Get("/keys", func(w http.ResponseWriter, r *http.Request) {
		t.execute(w, r, command.Keys{Needle: r.URL.Query().Get("needle")})
	})
	r.Get("/values", func(w http.ResponseWriter, r *http.Request) {
		t.execute(w, r, command.Values{Needle: r.URL.Query().Get("needle")})
	})
	r.Get("/amount", func(w http.ResponseWriter, r *http.Request) {
		t.execute(w, r, command.Amount{})
	})
	r.Get("/dump", func(w http.ResponseWriter, r *http.Request) {
		t.execute(w, r, command.DumpAll{})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, t.handler.Info())
	})
	r.Post("/shutdown", func(w http.ResponseWriter, r *http.Request) {
		if _, err := t.handler.Execute(r.Context(), command.Shutdown{}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	return r
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (t *httpServerTransport) handlePut(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	defer r.Body.Close()
	if err != nil {
		writeError(w, store.WrapError(store.RetCInvalidCommand, "failed to read request body", err))
		return
	}

	t.execute(w, r, command.Put{Key: key, Value: string(body)})
}

func (t *httpServerTransport) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t.execute(w, r, command.Get{Key: key})
}

func (t *httpServerTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t.execute(w, r, command.Delete{Key: key})
}

// execute runs cmd and renders the response. If the Accept header names a
// serializer format the whole response is sent in that format, otherwise
// values are plain text and everything else is JSON.
func (t *httpServerTransport) execute(w http.ResponseWriter, r *http.Request, cmd command.Command) {
	resp, err := t.handler.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	if s, ok := serializer.ForContentType(r.Header.Get("Accept")); ok {
		writeSerialized(w, s, resp)
		return
	}

	switch resp.Kind {
	case common.KindValue:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, resp.Value)
	case common.KindCount:
		writeJSON(w, http.StatusOK, map[string]int{"amount": resp.Count})
	case common.KindList:
		writeJSON(w, http.StatusOK, resp.Items)
	case common.KindPairs:
		writeJSON(w, http.StatusOK, resp.Pairs)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// keyParam returns the key of a /kv/{key} request, keys may contain slashes
func keyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			return "", store.WrapError(store.RetCInvalidCommand, "invalid key", err)
		}
		key = unescaped
	}
	if key == "" {
		return "", store.NewError(store.RetCInvalidCommand, "missing key")
	}
	return key, nil
}

// statusOf maps the error code of err to an HTTP status
func statusOf(err error) int {
	switch store.CodeOf(err) {
	case store.RetCKeyNotFound:
		return http.StatusNotFound
	case store.RetCInvalidCommand:
		return http.StatusBadRequest
	case store.RetCQueueClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{
		Code:  store.CodeOf(err).String(),
		Error: err.Error(),
	})
}

func writeSerialized(w http.ResponseWriter, s serializer.IResponseSerializer, resp common.Response) {
	data, err := s.Serialize(resp)
	if err != nil {
		writeError(w, store.WrapError(store.RetCInternalError, "failed to serialize response", err))
		return
	}
	w.Header().Set("Content-Type", s.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture the status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		Logger.Debugf("[%s] %s %s => %d took %s",
			middleware.GetReqID(r.Context()), r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
