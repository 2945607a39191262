package group

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/pkg/request"
)

// DefaultName is the display name of the group with the empty id
const DefaultName = "Default"

var (
	// ErrDuplicateID is returned when two groups share an id
	ErrDuplicateID = errors.New("group id must be unique")
	// ErrEmptyID is returned when a defined group has no id. The empty id
	// belongs to the default group.
	ErrEmptyID = errors.New("group id cannot be empty")
)

// Default returns the built-in group every registry ends with
func Default() request.Group {
	return request.Group{ID: "", Name: DefaultName}
}

// Registry holds the groups defined in the groups file
type Registry struct {
	path   string
	log    logger.Logger
	mu     sync.RWMutex
	groups []request.Group
}

// Load reads the groups file at path. A missing file yields only the default
// group; an unreadable or malformed one is logged and treated the same way.
func Load(path string, log logger.Logger) *Registry {
	r := &Registry{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug("Groups file not found, using default group", "path", path)
	case err != nil:
		log.Warn("Failed to read groups file", "path", path, "error", err)
	default:
		groups, perr := Parse(data)
		if perr != nil {
			log.Warn("Ignoring malformed groups file", "path", path, "error", perr)
		} else {
			r.groups = groups
		}
	}
	return r
}

// Parse decodes a JSON or YAML list of groups and validates it. Blank input
// is an empty list.
func Parse(data []byte) ([]request.Group, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var groups []request.Group
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if err := Validate(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Validate checks ids are present and unique
func Validate(groups []request.Group) error {
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			return ErrEmptyID
		}
		if _, ok := seen[g.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	return nil
}

// Path returns the groups file location
func (r *Registry) Path() string {
	return r.path
}

// Groups returns the defined groups followed by the default group
func (r *Registry) Groups() []request.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]request.Group, 0, len(r.groups)+1)
	out = append(out, r.groups...)
	return append(out, Default())
}

// Find looks a group up by id. The empty id always resolves to the default group.
func (r *Registry) Find(id string) (request.Group, bool) {
	for _, g := range r.Groups() {
		if g.ID == id {
			return g, true
		}
	}
	return request.Group{}, false
}

// Save validates groups and writes them to the groups file as indented JSON.
func (r *Registry) Save(groups []request.Group) error {
	if err := Validate(groups); err != nil {
		return err
	}

	var data []byte
	if len(groups) > 0 {
		encoded, err := json.MarshalIndent(groups, "", "  ")
		if err != nil {
			return fmt.Errorf("encode groups: %w", err)
		}
		data = append(encoded, '\n')
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare groups directory: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write groups file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace groups file: %w", err)
	}

	r.mu.Lock()
	r.groups = append([]request.Group(nil), groups...)
	r.mu.Unlock()

	r.log.Info("Groups saved", "path", r.path, "count", len(groups))
	return nil
}
