package tarchan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultRefreshInterval is used when the registry is constructed with a
// non-positive interval.
const DefaultRefreshInterval = 30 * time.Second

// Registry owns the current channel Snapshot and keeps it fresh from the
// object store. Lookups through Current never block on network I/O; the
// snapshot is swapped atomically by the refresh path, so a reader always
// observes a fully old or fully new view, never a mix.
type Registry struct {
	store    ObjectStore
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	poke     chan struct{}
}

// NewRegistry creates a registry backed by the given store. interval is
// the background refresh period; values <= 0 fall back to
// DefaultRefreshInterval.
func NewRegistry(store ObjectStore, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Registry{
		store:    store,
		interval: interval,
		poke:     make(chan struct{}, 1),
	}
}

// Current returns the latest successfully fetched snapshot, or nil if no
// refresh has ever succeeded. Safe for concurrent use.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// RefreshOnce fetches the catalog and every listed channel's config and
// installs the assembled snapshot as current. Partial success is not
// allowed: if any object is missing or malformed the whole cycle fails
// and the previous snapshot stays authoritative.
func (r *Registry) RefreshOnce(ctx context.Context) (*Snapshot, error) {
	raw, err := r.store.Get(ctx, CatalogKey)
	if err != nil {
		return nil, fmt.Errorf("refresh: read %s: %w", CatalogKey, err)
	}

	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("refresh: decode %s: %w: %v", CatalogKey, ErrMalformed, err)
	}

	channels := make(map[string]ChannelConfig, len(catalog.Channels))
	for _, name := range catalog.Channels {
		if !IsValidChannelName(name) {
			return nil, fmt.Errorf("refresh: %w: invalid channel name %q in %s", ErrMalformed, name, CatalogKey)
		}
		if _, dup := channels[name]; dup {
			return nil, fmt.Errorf("refresh: %w: duplicate channel %q in %s", ErrMalformed, name, CatalogKey)
		}

		cfg, err := r.fetchChannelConfig(ctx, name)
		if err != nil {
			return nil, err
		}
		channels[name] = cfg
	}

	snapshot := NewSnapshot(channels)
	r.current.Store(snapshot)
	return snapshot, nil
}

func (r *Registry) fetchChannelConfig(ctx context.Context, name string) (ChannelConfig, error) {
	key := ConfigKey(name)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return ChannelConfig{}, fmt.Errorf("refresh channel %q: read %s: %w", name, key, err)
	}

	var cfg ChannelConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ChannelConfig{}, fmt.Errorf("refresh channel %q: decode %s: %w: %v", name, key, ErrMalformed, err)
	}

	if err := cfg.Validate(); err != nil {
		return ChannelConfig{}, fmt.Errorf("refresh channel %q: %w", name, err)
	}

	return cfg, nil
}

// Poke requests an out-of-band refresh from the background loop. It never
// blocks; if a request is already pending the poke is coalesced.
func (r *Registry) Poke() {
	select {
	case r.poke <- struct{}{}:
	default:
	}
}

// Run refreshes the snapshot on a fixed interval until ctx is cancelled.
// A failed cycle is logged and skipped; the previous good snapshot keeps
// serving. Callers are expected to have run an eager RefreshOnce before
// starting the loop so there is channel data from the first request on.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.poke:
		}

		snapshot, err := r.RefreshOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("channel refresh failed, keeping previous snapshot", "err", err)
			continue
		}

		slog.Debug("channel refresh complete", "channels", snapshot.Len())
	}
}
