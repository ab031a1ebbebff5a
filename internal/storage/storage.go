package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/elink/internal/domain"
)

// Package storage provides the local reservation ledger.

// Store remembers DOI reservations per endpoint and accession number.
type Store interface {
	Close() error
	Lookup(endpoint, accessionNum string) (domain.Reservation, bool, error)
	Save(res domain.Reservation) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 90 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) Lookup(string, string) (domain.Reservation, bool, error) {
	return domain.Reservation{}, false, nil
}
func (noopStore) Save(domain.Reservation) error { return nil }
