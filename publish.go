package tarchan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	archiveContentType = "application/octet-stream"
	configContentType  = "application/json"
)

// Publisher appends new immutable versions to channels. It shares no
// in-memory state with the serving path; concurrent publishers coordinate
// solely through the store's conditional-write semantics.
type Publisher struct {
	store ObjectStore
}

// NewPublisher creates a publisher backed by the given store.
func NewPublisher(store ObjectStore) *Publisher {
	return &Publisher{store: store}
}

// PublishResult describes a completed publish.
type PublishResult struct {
	// Channel is the channel that was advanced.
	Channel string
	// ObjectKey is the full key of the uploaded permanent object.
	ObjectKey string
	// Latest is the new latest value (ObjectKey without the extension).
	Latest string
	// Superseded is the previous latest value, or "" if the channel was
	// empty before this publish.
	Superseded string
}

// Publish appends a new immutable version to a channel.
//
// The permanent object key is derived from the local file's base name,
// which must end with the channel's configured extension. The object is
// uploaded with a create-if-absent write: if the key already exists the
// operation fails with ErrAlreadyExists and nothing is written. Only
// after the upload is confirmed is the channel config rewritten to point
// at the new key, so a crash in between leaves the old pointer valid and
// the new object present but unreferenced, never a dangling reference.
//
// The running server picks the new pointer up on its next refresh.
func (p *Publisher) Publish(ctx context.Context, channel, localFile string) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}

	cfg, err := p.loadChannelConfig(ctx, channel)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish %q: %w", channel, err)
	}

	ext := cfg.Extension()
	objectKey := filepath.Base(localFile)

	if !strings.HasSuffix(objectKey, ext) || objectKey == ext {
		return PublishResult{}, fmt.Errorf("publish %q: %w: file %q does not end with the channel extension %q",
			channel, ErrInvalidInput, objectKey, ext)
	}
	if !IsValidKey(objectKey) {
		return PublishResult{}, fmt.Errorf("publish %q: %w: invalid object key %q", channel, ErrInvalidInput, objectKey)
	}

	data, err := os.ReadFile(localFile)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish %q: read input file: %w", channel, err)
	}

	if err := p.store.PutIfAbsent(ctx, objectKey, data, archiveContentType); err != nil {
		return PublishResult{}, fmt.Errorf("publish %q: upload %s: %w", channel, objectKey, err)
	}
	slog.Info("uploaded permanent object", "channel", channel, "key", objectKey, "bytes", len(data))

	superseded := cfg.Latest
	if superseded != "" {
		cfg.Previous = append(cfg.Previous, superseded)
	}
	cfg.Latest = strings.TrimSuffix(objectKey, ext)

	if err := p.writeChannelConfig(ctx, channel, cfg); err != nil {
		return PublishResult{}, fmt.Errorf(
			"publish %q: advance pointer: %w (the uploaded object %s is intact; retry to repair)",
			channel, err, objectKey)
	}
	slog.Info("advanced channel pointer", "channel", channel, "from", superseded, "to", cfg.Latest)

	return PublishResult{
		Channel:    channel,
		ObjectKey:  objectKey,
		Latest:     cfg.Latest,
		Superseded: superseded,
	}, nil
}

// CreateChannel registers a new channel in the catalog and writes its
// empty config object. ext is the channel's file extension; pass "" for
// the default. A missing catalog object is treated as an empty catalog,
// so the first CreateChannel also bootstraps channels.json.
func (p *Publisher) CreateChannel(ctx context.Context, name, ext string) error {
	if !IsValidChannelName(name) {
		return fmt.Errorf("create channel: %w: invalid name %q", ErrInvalidInput, name)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("create channel %q: %w: extension %q must start with '.'", name, ErrInvalidInput, ext)
	}

	catalog, err := p.loadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("create channel %q: %w", name, err)
	}

	if slices.Contains(catalog.Channels, name) {
		return fmt.Errorf("create channel %q: %w", name, ErrAlreadyExists)
	}

	cfg := ChannelConfig{FileExtension: ext}
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("create channel %q: encode config: %w", name, err)
	}

	// The config object is created conditionally so a concurrent create
	// of the same name resolves to one winner even if the catalog write
	// below races.
	if err := p.store.PutIfAbsent(ctx, ConfigKey(name), body, configContentType); err != nil {
		return fmt.Errorf("create channel %q: write config: %w", name, err)
	}

	catalog.Channels = append(catalog.Channels, name)
	slices.Sort(catalog.Channels)

	catalogBody, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("create channel %q: encode catalog: %w", name, err)
	}

	if err := p.store.Put(ctx, CatalogKey, catalogBody, configContentType); err != nil {
		return fmt.Errorf("create channel %q: update catalog: %w", name, err)
	}

	slog.Info("created channel", "channel", name, "extension", cfg.Extension())
	return nil
}

// ListChannels returns the names in the catalog, sorted.
func (p *Publisher) ListChannels(ctx context.Context) ([]string, error) {
	catalog, err := p.loadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	names := slices.Clone(catalog.Channels)
	slices.Sort(names)
	return names, nil
}

// ShowChannel returns a single channel's config.
func (p *Publisher) ShowChannel(ctx context.Context, name string) (ChannelConfig, error) {
	cfg, err := p.loadChannelConfig(ctx, name)
	if err != nil {
		return ChannelConfig{}, fmt.Errorf("show channel %q: %w", name, err)
	}
	return cfg, nil
}

// ChannelStatus reports how the bucket's archive objects relate to a
// channel's pointer history.
type ChannelStatus struct {
	Config ChannelConfig
	// Referenced are archive objects reachable through latest or
	// previous, in bucket listing order.
	Referenced []ObjectInfo
	// Orphaned are archive objects carrying the channel's extension that
	// no pointer references, e.g. leftovers of a publish that crashed
	// before advancing the pointer.
	Orphaned []ObjectInfo
}

// Status lists the bucket and classifies every object with the channel's
// extension as referenced or orphaned.
func (p *Publisher) Status(ctx context.Context, name string) (ChannelStatus, error) {
	cfg, err := p.loadChannelConfig(ctx, name)
	if err != nil {
		return ChannelStatus{}, fmt.Errorf("channel status %q: %w", name, err)
	}

	objects, err := p.store.List(ctx, "")
	if err != nil {
		return ChannelStatus{}, fmt.Errorf("channel status %q: list bucket: %w", name, err)
	}

	ext := cfg.Extension()
	referenced := make(map[string]bool, len(cfg.Previous)+1)
	if cfg.Latest != "" {
		referenced[cfg.Latest+ext] = true
	}
	for _, prev := range cfg.Previous {
		referenced[prev+ext] = true
	}

	status := ChannelStatus{Config: cfg}
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ext) {
			continue
		}
		if referenced[obj.Key] {
			status.Referenced = append(status.Referenced, obj)
		} else {
			status.Orphaned = append(status.Orphaned, obj)
		}
	}

	return status, nil
}

func (p *Publisher) loadCatalog(ctx context.Context) (Catalog, error) {
	raw, err := p.store.Get(ctx, CatalogKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("read %s: %w", CatalogKey, err)
	}

	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode %s: %w: %v", CatalogKey, ErrMalformed, err)
	}
	return catalog, nil
}

func (p *Publisher) loadChannelConfig(ctx context.Context, name string) (ChannelConfig, error) {
	key := ConfigKey(name)

	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return ChannelConfig{}, fmt.Errorf("read %s: %w", key, err)
	}

	var cfg ChannelConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ChannelConfig{}, fmt.Errorf("decode %s: %w: %v", key, ErrMalformed, err)
	}

	if err := cfg.Validate(); err != nil {
		return ChannelConfig{}, err
	}
	return cfg, nil
}

func (p *Publisher) writeChannelConfig(ctx context.Context, name string, cfg ChannelConfig) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return p.store.Put(ctx, ConfigKey(name), body, configContentType)
}
