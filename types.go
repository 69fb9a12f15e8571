package tarchan

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// CatalogKey is the well-known object holding the channel catalog.
	CatalogKey = "channels.json"

	// DefaultFileExtension is used when a channel config does not set one.
	DefaultFileExtension = ".tar.xz"
)

// Catalog is the wire format of channels.json.
type Catalog struct {
	Channels []string `json:"channels"`
}

// ChannelConfig is the wire format of a per-channel <name>.json object.
type ChannelConfig struct {
	// Latest is the object key of the current permanent version, without
	// the file extension. Empty for a freshly created channel that has
	// never been published to.
	Latest string `json:"latest,omitempty"`

	// FileExtension is the suffix required on /channel/<name><ext>
	// requests and appended to Latest to form the permanent object key.
	// Must start with a period. Multiple periods are allowed (".tar.xz").
	FileExtension string `json:"file_extension,omitempty"`

	// Previous holds the keys superseded by earlier publishes, oldest
	// first. The server never reads it; publish appends to it.
	Previous []string `json:"previous,omitempty"`
}

// Extension returns the channel's file extension, falling back to
// DefaultFileExtension when unset.
func (c ChannelConfig) Extension() string {
	if c.FileExtension == "" {
		return DefaultFileExtension
	}
	return c.FileExtension
}

// LatestObjectKey returns the full object key of the current permanent
// version, or "" if the channel has never been published to.
func (c ChannelConfig) LatestObjectKey() string {
	if c.Latest == "" {
		return ""
	}
	return c.Latest + c.Extension()
}

// Validate checks invariants that hold for every channel config,
// regardless of where it came from.
func (c ChannelConfig) Validate() error {
	if c.FileExtension != "" && !strings.HasPrefix(c.FileExtension, ".") {
		return fmt.Errorf("%w: file_extension %q must start with '.'", ErrMalformed, c.FileExtension)
	}
	if c.Latest != "" && !IsValidKey(c.Latest) {
		return fmt.Errorf("%w: invalid latest key %q", ErrMalformed, c.Latest)
	}
	return nil
}

// ConfigKey returns the bucket key of a channel's config object.
func ConfigKey(channel string) string {
	return channel + ".json"
}

// Snapshot is a point-in-time, internally consistent view of the channel
// catalog and every channel's config, all fetched in one refresh cycle.
// A Snapshot is immutable after construction.
type Snapshot struct {
	channels map[string]ChannelConfig
}

// NewSnapshot builds a snapshot from a fully assembled channel map. The
// map is not copied; callers must not mutate it afterwards.
func NewSnapshot(channels map[string]ChannelConfig) *Snapshot {
	return &Snapshot{channels: channels}
}

// Channel returns the config for a channel name.
func (s *Snapshot) Channel(name string) (ChannelConfig, bool) {
	cfg, ok := s.channels[name]
	return cfg, ok
}

// Resolve matches a request file name of the form <name><ext> against the
// snapshot. It returns the channel name and config whose name plus
// configured extension equals file.
func (s *Snapshot) Resolve(file string) (string, ChannelConfig, bool) {
	for name, cfg := range s.channels {
		if file == name+cfg.Extension() {
			return name, cfg, true
		}
	}
	return "", ChannelConfig{}, false
}

// Names returns the channel names in the snapshot, sorted.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of channels in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.channels)
}

// IsValidKey validates that a string is acceptable as a flat object key
// or key fragment. It checks that the key:
//   - is not empty, ".", or ".."
//   - contains no slashes (the bucket namespace is flat)
//   - is valid UTF-8
//   - does not contain null bytes, control characters, DEL, or whitespace
//   - does not contain the characters \ ? # ~
//
// Returns true if the key is valid, false otherwise.
func IsValidKey(k string) bool {
	if k == "" || k == "." || k == ".." {
		return false
	}

	if strings.ContainsAny(k, `/\?#~`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	for _, r := range k {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IsValidChannelName validates a channel name. Names share the key
// character rules and additionally must not end in ".json", which would
// collide with another channel's config object.
func IsValidChannelName(name string) bool {
	return IsValidKey(name) && !strings.HasSuffix(name, ".json")
}
