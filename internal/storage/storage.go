package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Package storage provides the key-value byte store the reader persists
// into. Backends enforce a byte quota across all keys and report
// ErrQuotaExceeded when a write would cross it, so callers can
// distinguish capacity pressure from ordinary I/O failures.

// ErrQuotaExceeded signals that a write was rejected because it would
// push the store past its configured capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ErrKeyNotFound signals a read of a key that has never been written or
// has been deleted.
var ErrKeyNotFound = errors.New("storage key not found")

// Store is a minimal byte-oriented key-value contract.
type Store interface {
	Close() error
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Size(key string) (int64, error)
}

// Options controls capacity characteristics for concrete backends.
type Options struct {
	QuotaBytes int64
}

const defaultQuotaBytes = 5 * 1024 * 1024

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "memory":
		return NewMemoryStore(opts.QuotaBytes), nil
	case "", "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = defaultQuotaBytes
	}
	return opts
}
