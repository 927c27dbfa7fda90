package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/eak1mov/go-tileview/cache"
	"github.com/eak1mov/go-tileview/config"
)

// deduceBackend picks the cache backend from the path suffix unless one is given.
func deduceBackend(backend, path string) string {
	if backend != "" {
		return backend
	}
	for _, suffix := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(path, suffix) {
			return "sqlite"
		}
	}
	return "fs"
}

// openStore opens the configured cache, or the one at path when it is set.
// The returned func closes it.
func openStore(cfg *config.Config, backend, path string) (cache.Store, func(), error) {
	c := *cfg
	if path != "" {
		c.CachePath = path
		c.CacheBackend = deduceBackend(backend, path)
	} else if backend != "" {
		c.CacheBackend = backend
	}
	store, err := c.OpenCache(slog.Default())
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
	}
	return store, closeStore, nil
}
