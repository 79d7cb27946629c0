package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/pkg/metrics"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

// ErrorType is the error type of every synthesized transport error body.
const ErrorType = "gateway_error"

// TransportStatus is the status of every synthesized transport error. The
// store never answers 502 itself, so callers can tell the two apart by status.
const TransportStatus = http.StatusBadGateway

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeAppError  = "app_error"
	OutcomeNotFound  = "not_found"
	OutcomeTransport = "transport_error"
)

// Handler serves /gateway/books by forwarding every call to the store.
type Handler struct {
	client   *Client
	mw       *server.Middleware
	logger   *slog.Logger
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHandler creates a gateway handler around client and logs the upstream
// address. When reg is non-nil, gateway metrics are registered on it. When
// mw is non-nil, its latency injection applies to /gateway/books.
func NewHandler(client *Client, mw *server.Middleware, logger *slog.Logger, reg *metrics.Registry) *Handler {
	h := &Handler{
		client: client,
		mw:     mw,
		logger: logger,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "gateway",
			Name:      "outcomes_total",
			Help:      "Gateway calls by operation and terminal outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "gateway",
			Name:      "upstream_duration_seconds",
			Help:      "Time spent waiting on the store, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(h.outcomes, h.duration)
	}
	logger.Info("gateway upstream configured", "base_url", client.BaseURL(), "timeout", client.Timeout().String())
	return h
}

// Routes mounts the /gateway/books routes. Random failure is never mounted:
// every gateway response is a relayed store outcome or a transport error.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/gateway/books", func(r chi.Router) {
		if h.mw != nil {
			r.Use(h.mw.LatencyInjection)
		}

		r.Post("/", h.CreateBook)
		r.Get("/", h.ListBooks)
		r.Get("/{id}", h.GetBook)
		r.Put("/{id}", h.UpdateBook)
		r.Delete("/{id}", h.DeleteBook)
	})
}

// CreateBook handles POST /gateway/books
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	body, ok := readBook(w, r)
	if !ok {
		return
	}
	h.forward(w, r, call{
		op:       OpCreate,
		validate: validBook,
		do:       func(ctx context.Context) (*Response, error) { return h.client.Create(ctx, body) },
	})
}

// ListBooks handles GET /gateway/books
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, call{
		op:       OpGetAll,
		validate: validBookList,
		do:       h.client.List,
	})
}

// GetBook handles GET /gateway/books/{id}
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.forward(w, r, call{
		op:                OpGetByID,
		normalizeNotFound: true,
		validate:          validBook,
		do:                func(ctx context.Context) (*Response, error) { return h.client.Get(ctx, id) },
	})
}

// UpdateBook handles PUT /gateway/books/{id}
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := readBook(w, r)
	if !ok {
		return
	}
	h.forward(w, r, call{
		op:                OpUpdate,
		normalizeNotFound: true,
		validate:          validBook,
		do:                func(ctx context.Context) (*Response, error) { return h.client.Update(ctx, id, body) },
	})
}

// DeleteBook handles DELETE /gateway/books/{id}
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.forward(w, r, call{
		op:                OpDelete,
		normalizeNotFound: true,
		emptySuccess:      true,
		do:                func(ctx context.Context) (*Response, error) { return h.client.Delete(ctx, id) },
	})
}

// call describes how one operation is forwarded and translated.
type call struct {
	op Op
	// normalizeNotFound turns an upstream 404 into an empty 404.
	normalizeNotFound bool
	// emptySuccess relays the success status without a body.
	emptySuccess bool
	// validate checks a success body; nil accepts anything.
	validate func([]byte) error
	do       func(ctx context.Context) (*Response, error)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, c call) {
	start := time.Now()
	resp, err := c.do(r.Context())
	h.duration.WithLabelValues(string(c.op)).Observe(time.Since(start).Seconds())

	if err == nil && resp.Success() && c.validate != nil {
		if verr := c.validate(resp.Body); verr != nil {
			err = &TransportError{Op: c.op, Kind: KindMalformed, Err: verr}
		}
	}

	var terr *TransportError
	switch {
	case errors.As(err, &terr):
		h.record(c.op, OutcomeTransport)
		h.logger.Error("upstream transport failure",
			"op", c.op, "kind", terr.Kind, "err", terr.Err, "elapsed", time.Since(start).String())
		server.TypedError(w, TransportStatus, ErrorType,
			fmt.Sprintf("gateway error during %s: %s", c.op, terr.Kind.Reason()))

	case err != nil:
		h.record(c.op, OutcomeTransport)
		h.logger.Error("upstream transport failure", "op", c.op, "err", err)
		server.TypedError(w, TransportStatus, ErrorType,
			fmt.Sprintf("gateway error during %s: %s", c.op, KindOther.Reason()))

	case resp.Success():
		h.record(c.op, OutcomeSuccess)
		h.logger.Info("forwarded", "op", c.op, "status", resp.StatusCode, "elapsed", time.Since(start).String())
		if c.emptySuccess {
			server.Empty(w, resp.StatusCode)
			return
		}
		relay(w, resp)

	case resp.StatusCode == http.StatusNotFound && c.normalizeNotFound:
		h.record(c.op, OutcomeNotFound)
		h.logger.Info("forwarded", "op", c.op, "status", resp.StatusCode, "elapsed", time.Since(start).String())
		server.Empty(w, http.StatusNotFound)

	default:
		h.record(c.op, OutcomeAppError)
		h.logger.Warn("upstream application error", "op", c.op, "status", resp.StatusCode)
		relay(w, resp)
	}
}

func (h *Handler) record(op Op, outcome string) {
	h.outcomes.WithLabelValues(string(op), outcome).Inc()
}

// relay writes the upstream status and body unchanged, keeping its
// Content-Type.
func relay(w http.ResponseWriter, resp *Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// readBook reads the inbound payload and checks that it is a book. The raw
// bytes are forwarded so the gateway never rewrites a book.
func readBook(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		server.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	if len(body) > MaxBodySize {
		server.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", MaxBodySize))
		return nil, false
	}
	if err := validBook(body); err != nil {
		server.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	return body, true
}

func validBook(data []byte) error {
	var b *book.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		return errors.New("expected a book object")
	}
	return nil
}

func validBookList(data []byte) error {
	var books []book.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return err
	}
	if books == nil {
		return errors.New("expected a book array")
	}
	return nil
}
