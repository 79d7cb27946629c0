// Package book defines the Book record and the concurrency-safe repository
// that owns the canonical collection.
package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wondertwin-ai/bookshelf/pkg/metrics"
	"github.com/wondertwin-ai/bookshelf/pkg/store"
)

// ErrNotFound is returned when no book exists for the requested ID.
var ErrNotFound = errors.New("book not found")

// Book is a single catalogue record. ID is nil until the repository assigns one.
type Book struct {
	ID              *int64 `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publicationYear"`
}

// Equal reports whether b and o hold the same values, ID included.
func (b Book) Equal(o Book) bool {
	if (b.ID == nil) != (o.ID == nil) {
		return false
	}
	if b.ID != nil && *b.ID != *o.ID {
		return false
	}
	return b.Title == o.Title &&
		b.Author == o.Author &&
		b.ISBN == o.ISBN &&
		b.PublicationYear == o.PublicationYear
}

// String renders the book for logs.
func (b Book) String() string {
	id := "null"
	if b.ID != nil {
		id = strconv.FormatInt(*b.ID, 10)
	}
	return fmt.Sprintf("Book{id=%s, title=%q, author=%q, isbn=%q, publicationYear=%d}",
		id, b.Title, b.Author, b.ISBN, b.PublicationYear)
}

// WithID returns a copy of b carrying id.
func (b Book) WithID(id int64) Book {
	b.ID = &id
	return b
}

// Repository is the in-memory book collection. It is safe for concurrent use:
// writers to one ID exclude readers and writers of that ID, other IDs proceed
// independently, and IDs are minted atomically and never reused.
type Repository struct {
	books *store.Store[Book]
	ops   *prometheus.CounterVec
}

// NewRepository creates an empty repository. When reg is non-nil, operation
// counters are registered on it.
func NewRepository(reg *metrics.Registry) *Repository {
	r := &Repository{
		books: store.New[Book](),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "store_operations_total",
			Help:      "Book repository operations by operation and result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(r.ops)
	}
	return r
}

func (r *Repository) observe(op string, err error) {
	result := "ok"
	if errors.Is(err, ErrNotFound) {
		result = "not_found"
	}
	r.ops.WithLabelValues(op, result).Inc()
}

// Create stores a copy of b under a freshly minted ID and returns it.
// Any ID carried by b is ignored.
func (r *Repository) Create(b Book) Book {
	_, created := r.books.Insert(func(id int64) Book {
		return b.WithID(id)
	})
	r.observe("create", nil)
	return created
}

// GetAll returns every stored book ordered by ID. The result is never nil.
func (r *Repository) GetAll() []Book {
	all := r.books.List()
	r.observe("get_all", nil)
	return all
}

// GetByID returns the book stored under id.
func (r *Repository) GetByID(id int64) (Book, error) {
	b, ok := r.books.Get(id)
	if !ok {
		r.observe("get", ErrNotFound)
		return Book{}, fmt.Errorf("get book %d: %w", id, ErrNotFound)
	}
	r.observe("get", nil)
	return b, nil
}

// Update replaces title, author, ISBN and publication year of the book
// stored under id in a single write. The stored ID is kept.
func (r *Repository) Update(id int64, v Book) (Book, error) {
	updated, ok := r.books.Update(id, func(cur Book) Book {
		cur.Title = v.Title
		cur.Author = v.Author
		cur.ISBN = v.ISBN
		cur.PublicationYear = v.PublicationYear
		return cur
	})
	if !ok {
		r.observe("update", ErrNotFound)
		return Book{}, fmt.Errorf("update book %d: %w", id, ErrNotFound)
	}
	r.observe("update", nil)
	return updated, nil
}

// Delete removes the book stored under id. Its ID is never handed out again.
func (r *Repository) Delete(id int64) error {
	if !r.books.Delete(id) {
		r.observe("delete", ErrNotFound)
		return fmt.Errorf("delete book %d: %w", id, ErrNotFound)
	}
	r.observe("delete", nil)
	return nil
}

// Count returns the number of stored books.
func (r *Repository) Count() int {
	return r.books.Count()
}

type stateSnapshot struct {
	Books  map[int64]Book `json:"books"`
	LastID int64          `json:"last_id"`
}

// Snapshot returns the full state as a JSON-serializable value.
// Used by the admin /state endpoint.
func (r *Repository) Snapshot() any {
	return stateSnapshot{
		Books:  r.books.Snapshot(),
		LastID: r.books.LastID(),
	}
}

// LoadState replaces the full state from a JSON body. Each book's ID field is
// taken from its map key. Used by admin /state and seed data loading.
func (r *Repository) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode book state: %w", err)
	}
	books := make(map[int64]Book, len(snap.Books))
	for id, b := range snap.Books {
		if id <= 0 {
			return fmt.Errorf("decode book state: invalid id %d", id)
		}
		books[id] = b.WithID(id)
	}
	r.books.LoadSnapshot(books)
	r.books.AdvanceTo(snap.LastID)
	return nil
}

// Reset removes every book. Previously minted IDs stay retired.
func (r *Repository) Reset() {
	r.books.Reset()
}
