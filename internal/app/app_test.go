package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/internal/config"
	"github.com/wondertwin-ai/bookshelf/pkg/testutil"
)

func storeConfig() config.Store {
	var s config.Store
	s.Name = "store"
	return s
}

func TestNewStoreSeeds(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"books":{"2":{"title":"Emma","author":"Austen"}},"last_id":2}`), 0o644))

	cfg := storeConfig()
	cfg.SeedFile = seed
	st, err := NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Books.Count())

	ts := httptest.NewServer(st)
	defer ts.Close()
	c := testutil.NewClient(t, ts)

	var b book.Book
	c.Post("/books", map[string]any{"title": "Dune"}).AssertStatus(http.StatusCreated).JSON(&b)
	assert.Equal(t, int64(3), *b.ID)
}

func TestNewStoreBadSeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{bad`), 0o644))

	cfg := storeConfig()
	cfg.SeedFile = seed
	_, err := NewStore(cfg)
	assert.ErrorContains(t, err, "loading seed data")
}

func TestNewStoreInvalidConfig(t *testing.T) {
	cfg := storeConfig()
	cfg.FailRate = 3
	_, err := NewStore(cfg)
	assert.ErrorContains(t, err, "fail_rate")
}

func TestNewGatewayInvalidConfig(t *testing.T) {
	var cfg config.Gateway
	_, err := NewGateway(cfg)
	assert.ErrorContains(t, err, "upstream_url is required")
}

// TestStoreAndGatewayServe runs both services on real listeners, the way
// `bookshelf all` does, and drives a request through the gateway.
func TestStoreAndGatewayServe(t *testing.T) {
	storeLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gwLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	st, err := NewStore(storeConfig())
	require.NoError(t, err)

	var gcfg config.Gateway
	gcfg.Name = "gateway"
	gcfg.UpstreamURL = "http://" + storeLn.Addr().String() + "/books"
	gcfg.UpstreamTimeout = time.Second
	gw, err := NewGateway(gcfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.ServeListener(gctx, storeLn) })
	g.Go(func() error { return gw.ServeListener(gctx, gwLn) })

	c := testutil.NewClientURL(t, "http://"+gwLn.Addr().String())
	var b book.Book
	c.Post("/gateway/books", map[string]any{"title": "Dune"}).AssertStatus(http.StatusCreated).JSON(&b)
	assert.Equal(t, int64(1), *b.ID)
	c.Get("/gateway/books/1").AssertStatus(http.StatusOK)
	assert.Equal(t, 1, st.Books.Count())

	cancel()
	require.NoError(t, g.Wait())
}
