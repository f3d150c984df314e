package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/armalogs/backend/internal/models"
)

var (
	// ErrNotFound is returned when an event table or stored file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownFormat is returned for a path whose extension no codec handles.
	ErrUnknownFormat = errors.New("unknown event table format")
)

// Codec persists an EventStore in one file format.
type Codec interface {
	// Name returns the unique name of the codec.
	Name() string
	// Extensions lists the lower-case file extensions the codec handles.
	Extensions() []string
	// Save writes events to path, replacing any existing file.
	Save(path string, events models.EventStore) error
	// Load reads all events from path in stored order.
	Load(path string) (models.EventStore, error)
}

// Registry holds all available codecs and picks one by file extension.
type Registry struct {
	codecs []Codec
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with every built-in codec.
func NewRegistry() *Registry {
	return &Registry{
		codecs: []Codec{
			NewCSVCodec(),
			NewDuckCodec(),
			NewSnapshotCodec(),
			NewSQLiteCodec(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// FindCodec returns the codec for the extension of path.
func (r *Registry) FindCodec(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range r.codecs {
		for _, e := range c.Extensions() {
			if e == ext {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Save writes events to path with the codec matching its extension.
func (r *Registry) Save(path string, events models.EventStore) error {
	c, err := r.FindCodec(path)
	if err != nil {
		return err
	}
	if err := c.Save(path, events); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// Load reads the event table at path with the codec matching its extension.
// A missing file yields an error wrapping ErrNotFound.
func (r *Registry) Load(path string) (models.EventStore, error) {
	c, err := r.FindCodec(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	events, err := c.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return events, nil
}

// Save writes events with the global registry.
func Save(path string, events models.EventStore) error {
	return globalRegistry.Save(path, events)
}

// Load reads events with the global registry.
func Load(path string) (models.EventStore, error) {
	return globalRegistry.Load(path)
}
