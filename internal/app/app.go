// Package app assembles the bookshelf services from their configuration.
package app

import (
	"fmt"
	"os"

	"github.com/wondertwin-ai/bookshelf/internal/book"
	"github.com/wondertwin-ai/bookshelf/internal/config"
	"github.com/wondertwin-ai/bookshelf/internal/gateway"
	"github.com/wondertwin-ai/bookshelf/internal/storeapi"
	"github.com/wondertwin-ai/bookshelf/pkg/admin"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

// Store is an assembled resource store service.
type Store struct {
	*server.Server
	Books *book.Repository
}

// NewStore validates cfg, wires the /books API and admin plane, and loads
// the seed file if one is configured.
func NewStore(cfg config.Store) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}

	srv := server.New(cfg.Config)
	books := book.NewRepository(srv.Metrics)

	storeapi.NewHandler(books, srv.Middleware(), srv.Logger).Routes(srv.Router)

	adm := admin.NewHandler(books, srv.Middleware())
	adm.SetConfigProvider(srv)
	adm.Routes(srv.Router)

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if err := books.LoadState(data); err != nil {
			return nil, fmt.Errorf("loading seed data: %w", err)
		}
		srv.Logger.Info("loaded seed data", "file", cfg.SeedFile, "books", books.Count())
	}

	srv.Logger.Info("store ready", "port", cfg.Port)
	return &Store{Server: srv, Books: books}, nil
}

// Gateway is an assembled forwarding gateway service.
type Gateway struct {
	*server.Server
	Client *gateway.Client
}

// NewGateway validates cfg and wires the /gateway/books API and the
// stateless admin plane.
func NewGateway(cfg config.Gateway) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}

	srv := server.New(cfg.Config)
	client := gateway.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout)

	gateway.NewHandler(client, srv.Middleware(), srv.Logger, srv.Metrics).Routes(srv.Router)

	adm := admin.NewHandler(nil, srv.Middleware())
	adm.SetConfigProvider(gateway.NewRuntimeConfig(srv, client))
	adm.Routes(srv.Router)

	srv.Logger.Info("gateway ready", "port", cfg.Port)
	return &Gateway{Server: srv, Client: client}, nil
}
