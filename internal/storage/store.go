package storage

import (
	"errors"
	"fmt"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/pkg/request"
)

// ErrUnsupportedDriver indicates the configured driver is not available.
var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// DefaultListLimit caps list results when the configuration leaves it unset
const DefaultListLimit = 200

// StoreError wraps a persistence failure with the operation that raised it.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Record is one catalog row. Title is empty until the user renames the entry.
type Record struct {
	GroupID  string `json:"group_id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Request  string `json:"request"`
	Response string `json:"response"`
	Title    string `json:"title,omitempty"`
}

// Entry is a catalog row as shown in a list
type Entry struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// Key returns the "<METHOD> <URL>" identity of e
func (e Entry) Key() string {
	return request.Key(e.Method, e.URL)
}

// DisplayTitle is the stored title, or "<METHOD> <URL>" when none was set.
func (e Entry) DisplayTitle() string {
	if e.Title == "" {
		return e.Key()
	}
	return e.Title
}

// Store defines the persistence contract of the request catalog. Every
// method runs a single statement.
type Store interface {
	// List returns entries of a group ordered by url. A non-empty filter keeps
	// rows whose url or title contains it.
	List(groupID, filter string) ([]Entry, error)
	// Put upserts rec keyed by (group, method, url). An existing title is kept
	// and returned.
	Put(rec *Record) (string, error)
	// Find returns nil without error when no row matches.
	Find(groupID, method, url string) (*Record, error)
	Delete(groupID, method, url string) error
	// Rename sets the title. An empty title clears it.
	Rename(groupID, method, url, title string) error
	Close() error
}

// New instantiates a Store based on configuration.
func New(cfg *config.StorageConfig, log logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("storage config is nil")
	}
	switch driver := cfg.Driver; driver {
	case "", "sqlite", "sqlite3":
		return newSQLiteStore(cfg, log)
	default:
		return nil, ErrUnsupportedDriver
	}
}
