// Package storeapi implements the resource store's /books HTTP API.
package storeapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

// Handler holds all API handler state.
type Handler struct {
	books  *book.Repository
	mw     *server.Middleware
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(books *book.Repository, mw *server.Middleware, logger *slog.Logger) *Handler {
	return &Handler{books: books, mw: mw, logger: logger}
}

// Routes mounts the /books routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Use(h.mw.LatencyInjection)
		r.Use(h.mw.RandomFailure)
		r.Use(h.mw.FaultInjection)

		r.Post("/", h.CreateBook)
		r.Get("/", h.ListBooks)
		r.Get("/{id}", h.GetBook)
		r.Put("/{id}", h.UpdateBook)
		r.Delete("/{id}", h.DeleteBook)
	})
}

// bookID parses the {id} URL parameter. A value that is not an integer can
// never name a stored book.
func bookID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
