package storeapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

func decodeBook(r *http.Request) (book.Book, error) {
	var b book.Book
	err := json.NewDecoder(r.Body).Decode(&b)
	return b, err
}

// CreateBook handles POST /books
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBook(r)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created := h.books.Create(in)
	h.logger.Debug("book created", "book", created.String())
	server.JSON(w, http.StatusCreated, created)
}

// ListBooks handles GET /books
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.books.GetAll())
}

// GetBook handles GET /books/{id}
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		server.Empty(w, http.StatusNotFound)
		return
	}

	b, err := h.books.GetByID(id)
	if errors.Is(err, book.ErrNotFound) {
		server.Empty(w, http.StatusNotFound)
		return
	}
	server.JSON(w, http.StatusOK, b)
}

// UpdateBook handles PUT /books/{id}
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		server.Empty(w, http.StatusNotFound)
		return
	}

	in, err := decodeBook(r)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.books.Update(id, in)
	if errors.Is(err, book.ErrNotFound) {
		server.Empty(w, http.StatusNotFound)
		return
	}
	h.logger.Debug("book updated", "book", updated.String())
	server.JSON(w, http.StatusOK, updated)
}

// DeleteBook handles DELETE /books/{id}
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		server.Empty(w, http.StatusNotFound)
		return
	}

	if err := h.books.Delete(id); errors.Is(err, book.ErrNotFound) {
		server.Empty(w, http.StatusNotFound)
		return
	}
	h.logger.Debug("book deleted", "id", id)
	server.Empty(w, http.StatusNoContent)
}
