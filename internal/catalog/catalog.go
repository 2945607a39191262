// Package catalog keeps the visible, most-recently-used ordered list of
// requests for the active group on top of the persistent store.
package catalog

import (
	"errors"

	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/request"
)

// Catalog is not safe for concurrent use. It is owned by a single goroutine,
// the session loop or a CLI command.
type Catalog struct {
	store   storage.Store
	log     logger.Logger
	groupID string
	entries []storage.Entry
	index   map[string]struct{}
}

// New creates a catalog with an empty visible list for the default group
func New(store storage.Store, log logger.Logger) *Catalog {
	return &Catalog{
		store: store,
		log:   log,
		index: make(map[string]struct{}),
	}
}

// GroupID returns the active group
func (c *Catalog) GroupID() string {
	return c.groupID
}

// Load makes groupID the active group and rebuilds the visible list from
// storage. On failure the previous state is kept.
func (c *Catalog) Load(groupID, filter string) error {
	entries, err := c.store.List(groupID, filter)
	if err != nil {
		return err
	}
	c.groupID = groupID
	c.entries = entries
	c.index = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		c.index[e.Key()] = struct{}{}
	}
	return nil
}

// List queries storage without touching the visible list
func (c *Catalog) List(groupID, filter string) ([]storage.Entry, error) {
	return c.store.List(groupID, filter)
}

// Entries returns a copy of the visible list, most recent first
func (c *Catalog) Entries() []storage.Entry {
	out := make([]storage.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Contains reports whether the visible list holds method and url
func (c *Catalog) Contains(method, url string) bool {
	_, ok := c.index[request.Key(method, url)]
	return ok
}

// Put persists an executed request in the active group. The visible list is
// only changed once the row is stored: a new key goes to the front.
func (c *Catalog) Put(req *request.Request, resp *request.Response) error {
	if req == nil || resp == nil {
		return errors.New("catalog: request and response are required")
	}
	title, err := c.store.Put(&storage.Record{
		GroupID:  c.groupID,
		Method:   req.Method,
		URL:      req.URL,
		Request:  req.Raw,
		Response: resp.Body,
	})
	if err != nil {
		return err
	}

	key := req.Key()
	if _, ok := c.index[key]; ok {
		return nil
	}
	entry := storage.Entry{Method: req.Method, URL: req.URL, Title: title}
	c.entries = append([]storage.Entry{entry}, c.entries...)
	c.index[key] = struct{}{}
	c.log.Debug("Catalog entry added", "group", c.groupID, "key", key)
	return nil
}

// Find returns the stored request text and response body
func (c *Catalog) Find(groupID, method, url string) (string, string, bool, error) {
	rec, err := c.store.Find(groupID, method, url)
	if err != nil {
		return "", "", false, err
	}
	if rec == nil {
		return "", "", false, nil
	}
	return rec.Request, rec.Response, true, nil
}

// Delete removes the row and, for the active group, its visible entry
func (c *Catalog) Delete(groupID, method, url string) error {
	if err := c.store.Delete(groupID, method, url); err != nil {
		return err
	}
	if groupID != c.groupID {
		return nil
	}
	key := request.Key(method, url)
	if _, ok := c.index[key]; !ok {
		return nil
	}
	delete(c.index, key)
	if i := c.position(key); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
	return nil
}

// Rename sets the title of a row. An empty title displays as "<METHOD> <URL>".
func (c *Catalog) Rename(groupID, method, url, title string) error {
	if err := c.store.Rename(groupID, method, url, title); err != nil {
		return err
	}
	if groupID != c.groupID {
		return nil
	}
	if i := c.position(request.Key(method, url)); i >= 0 {
		c.entries[i].Title = title
	}
	return nil
}

// Promote moves the visible entry of method and url to the front. Storage
// order is untouched.
func (c *Catalog) Promote(method, url string) {
	i := c.position(request.Key(method, url))
	if i <= 0 {
		return
	}
	entry := c.entries[i]
	copy(c.entries[1:i+1], c.entries[:i])
	c.entries[0] = entry
}

func (c *Catalog) position(key string) int {
	for i, e := range c.entries {
		if e.Key() == key {
			return i
		}
	}
	return -1
}
