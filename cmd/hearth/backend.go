package main

import (
	"fmt"

	"github.com/samcharles93/hearth/internal/backend"
	"github.com/samcharles93/hearth/internal/backend/toy"
)

func backendFor(name string) (backend.Backend, error) {
	switch name {
	case "", "toy":
		return toy.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (supported: toy)", name)
	}
}

func contextConfig() backend.ContextConfig {
	return backend.ContextConfig{
		ContextLen:     int(contextLen),
		BatchSize:      int(batchSize),
		Threads:        int(threads),
		ThreadsBatch:   int(threadsBatch),
		CachePrecision: cachePrecision,
	}
}
