package storeapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/internal/storeapi"
	"github.com/wondertwin-ai/bookshelf/pkg/admin"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
	"github.com/wondertwin-ai/bookshelf/pkg/testutil"
)

func setupStore(t *testing.T) (*testutil.Client, *testutil.AdminClient) {
	t.Helper()

	srv := server.New(server.Config{Name: "store-test"})
	books := book.NewRepository(srv.Metrics)

	storeapi.NewHandler(books, srv.Middleware(), srv.Logger).Routes(srv.Router)
	adm := admin.NewHandler(books, srv.Middleware())
	adm.SetConfigProvider(srv)
	adm.Routes(srv.Router)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c := testutil.NewClient(t, ts)
	return c, testutil.NewAdminClient(c)
}

func duneBody() map[string]any {
	return map[string]any{
		"title":           "Dune",
		"author":          "Herbert",
		"isbn":            "978-0441013593",
		"publicationYear": 1965,
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestBookLifecycle(t *testing.T) {
	c, _ := setupStore(t)

	resp := c.Post("/books", duneBody()).AssertStatus(http.StatusCreated)
	var created book.Book
	resp.JSON(&created)
	if created.ID == nil || *created.ID != 1 {
		t.Fatalf("expected id 1, got %s", created)
	}
	if created.Title != "Dune" || created.PublicationYear != 1965 {
		t.Errorf("unexpected created book: %s", created)
	}
	if ct := resp.Headers.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var all []book.Book
	c.Get("/books").AssertStatus(http.StatusOK).JSON(&all)
	if len(all) != 1 || !all[0].Equal(created) {
		t.Errorf("expected [%s], got %v", created, all)
	}

	updated := duneBody()
	updated["publicationYear"] = 1966
	var got book.Book
	c.Put("/books/1", updated).AssertStatus(http.StatusOK).JSON(&got)
	if *got.ID != 1 || got.PublicationYear != 1966 {
		t.Errorf("expected id 1 with year 1966, got %s", got)
	}

	c.Get("/books/1").AssertStatus(http.StatusOK).JSON(&got)
	if got.PublicationYear != 1966 {
		t.Errorf("update not visible: %s", got)
	}

	c.Delete("/books/1").AssertStatus(http.StatusNoContent).AssertEmptyBody()
	c.Get("/books/1").AssertStatus(http.StatusNotFound).AssertEmptyBody()
}

func TestListEmptyIsArray(t *testing.T) {
	c, _ := setupStore(t)

	resp := c.Get("/books").AssertStatus(http.StatusOK)
	if strings.TrimSpace(string(resp.Body)) != "[]" {
		t.Errorf("expected [], got %s", resp.Body)
	}
}

func TestCreateIgnoresClientID(t *testing.T) {
	c, _ := setupStore(t)

	body := duneBody()
	body["id"] = 77
	var created book.Book
	c.Post("/books", body).AssertStatus(http.StatusCreated).JSON(&created)
	if *created.ID != 1 {
		t.Errorf("expected server-assigned id 1, got %d", *created.ID)
	}
}

func TestDeletedIDNotReused(t *testing.T) {
	c, _ := setupStore(t)

	c.Post("/books", duneBody()).AssertStatus(http.StatusCreated)
	c.Delete("/books/1").AssertStatus(http.StatusNoContent)

	var next book.Book
	c.Post("/books", duneBody()).AssertStatus(http.StatusCreated).JSON(&next)
	if *next.ID != 2 {
		t.Errorf("expected id 2, got %d", *next.ID)
	}
}

// ---------------------------------------------------------------------------
// Not found and bad input
// ---------------------------------------------------------------------------

func TestMissingBookIsEmpty404(t *testing.T) {
	c, _ := setupStore(t)

	c.Get("/books/9").AssertStatus(http.StatusNotFound).AssertEmptyBody()
	c.Put("/books/9", duneBody()).AssertStatus(http.StatusNotFound).AssertEmptyBody()
	c.Delete("/books/9").AssertStatus(http.StatusNotFound).AssertEmptyBody()
}

func TestNonIntegerIDIs404(t *testing.T) {
	c, _ := setupStore(t)

	c.Get("/books/abc").AssertStatus(http.StatusNotFound).AssertEmptyBody()
	c.Put("/books/abc", duneBody()).AssertStatus(http.StatusNotFound)
	c.Delete("/books/abc").AssertStatus(http.StatusNotFound)
}

func TestMalformedBodyIs400(t *testing.T) {
	c, _ := setupStore(t)

	c.PostRaw("/books", "{not json").
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("Invalid request body")

	c.Post("/books", duneBody())
	c.PutRaw("/books/1", "[").AssertStatus(http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentCreatesOverHTTP(t *testing.T) {
	c, _ := setupStore(t)

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var b book.Book
			c.Post("/books", duneBody()).JSON(&b)
			ids <- *b.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d unique ids, got %d", n, len(seen))
	}
}

// ---------------------------------------------------------------------------
// Admin integration
// ---------------------------------------------------------------------------

func TestFaultInjectionOnBooks(t *testing.T) {
	c, ac := setupStore(t)

	ac.InjectFault("/books", map[string]any{"status_code": 503}).AssertStatus(http.StatusOK)
	c.Get("/books").AssertStatus(http.StatusServiceUnavailable).AssertBodyContains("injected fault")

	ac.Health().AssertStatus(http.StatusOK)

	ac.RemoveFault("/books").AssertStatus(http.StatusOK)
	c.Get("/books").AssertStatus(http.StatusOK)
}

func TestRandomFailureOnlyOnBooks(t *testing.T) {
	c, ac := setupStore(t)

	ac.UpdateConfig(map[string]any{"fail_rate": 1.0}).AssertStatus(http.StatusOK)

	c.Get("/books").AssertStatus(http.StatusInternalServerError).AssertBodyContains("simulated random failure")
	c.Post("/books", duneBody()).AssertStatus(http.StatusInternalServerError)

	ac.Health().AssertStatus(http.StatusOK)
	ac.GetState().AssertStatus(http.StatusOK)
	ac.GetConfig().AssertStatus(http.StatusOK)
	c.Get("/metrics").AssertStatus(http.StatusOK)

	ac.UpdateConfig(map[string]any{"fail_rate": 0.0}).AssertStatus(http.StatusOK)
	c.Get("/books").AssertStatus(http.StatusOK)
}

func TestSeedStateAndReset(t *testing.T) {
	c, ac := setupStore(t)

	ac.LoadState(map[string]any{
		"books": map[string]any{
			"4": map[string]any{"title": "Emma", "author": "Austen"},
		},
		"last_id": 4,
	}).AssertStatus(http.StatusOK)

	var b book.Book
	c.Get("/books/4").AssertStatus(http.StatusOK).JSON(&b)
	if b.Title != "Emma" || *b.ID != 4 {
		t.Errorf("unexpected seeded book: %s", b)
	}

	ac.Reset().AssertStatus(http.StatusOK)
	c.Get("/books/4").AssertStatus(http.StatusNotFound)

	c.Post("/books", duneBody()).AssertStatus(http.StatusCreated).JSON(&b)
	if *b.ID != 5 {
		t.Errorf("expected id 5 after reset, got %d", *b.ID)
	}
}

func TestRequestsAreLogged(t *testing.T) {
	c, ac := setupStore(t)

	c.Get("/books")
	var entries []server.RequestLogEntry
	ac.GetRequests().AssertStatus(http.StatusOK).JSON(&entries)
	if len(entries) == 0 || entries[0].Path != "/books" {
		t.Errorf("expected /books in request log, got %+v", entries)
	}
}

func TestRuntimeConfigUpdate(t *testing.T) {
	_, ac := setupStore(t)

	ac.UpdateConfig(map[string]any{"latency": "1ms"}).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"latency":"1ms"`)
	ac.UpdateConfig(map[string]any{"port": 1}).AssertStatus(http.StatusBadRequest)
}
