package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/funnyzak/reqput/internal/config"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func newTestStore(t *testing.T, limit int) Store {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.StorageConfig{
		Driver:    "sqlite",
		Path:      filepath.Join(dir, "reqput.db"),
		ListLimit: limit,
	}
	store, err := New(cfg, noopLogger{})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func fakeRecord(group, method, url, body string) *Record {
	return &Record{
		GroupID:  group,
		Method:   method,
		URL:      url,
		Request:  method + " " + url,
		Response: body,
	}
}

func TestSQLiteStore_PutAndFind(t *testing.T) {
	store := newTestStore(t, 0)
	if _, err := store.Put(fakeRecord("", "GET", "/a", "first")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	rec, err := store.Find("", "GET", "/a")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if rec == nil || rec.Request != "GET /a" || rec.Response != "first" {
		t.Fatalf("unexpected record %#v", rec)
	}

	missing, err := store.Find("", "POST", "/a")
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %#v, %v", missing, err)
	}
}

func TestSQLiteStore_PutReplacesAndKeepsTitle(t *testing.T) {
	store := newTestStore(t, 0)
	if _, err := store.Put(fakeRecord("g", "GET", "/a", "A")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Rename("g", "GET", "/a", "users"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	rec := fakeRecord("g", "GET", "/a", "B")
	rec.Request = "GET /a\nquery:\n  x: 1"
	title, err := store.Put(rec)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if title != "users" {
		t.Fatalf("put should report the kept title, got %q", title)
	}

	entries, err := store.List("g", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one row for the key, got %d", len(entries))
	}
	got, _ := store.Find("g", "GET", "/a")
	if got.Response != "B" || got.Request != rec.Request || got.Title != "users" {
		t.Fatalf("unexpected row after second put: %#v", got)
	}
}

func TestSQLiteStore_GroupsAreIsolated(t *testing.T) {
	store := newTestStore(t, 0)
	for _, g := range []string{"", "dev", "prod"} {
		if _, err := store.Put(fakeRecord(g, "GET", "/same", g)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	for _, g := range []string{"", "dev", "prod"} {
		entries, err := store.List(g, "")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("group %q: expected 1 entry, got %d", g, len(entries))
		}
		rec, _ := store.Find(g, "GET", "/same")
		if rec.Response != g {
			t.Fatalf("group %q: read another group's row", g)
		}
	}
}

func TestSQLiteStore_ListOrderFilterAndLimit(t *testing.T) {
	store := newTestStore(t, 3)
	urls := []string{"/d", "/b", "/a_x", "/c", "/ax"}
	for _, u := range urls {
		if _, err := store.Put(fakeRecord("", "GET", u, "")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := store.Rename("", "GET", "/d", "Users Endpoint"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	entries, err := store.List("", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(entries))
	}
	want := []string{"/a_x", "/ax", "/b"}
	for i, e := range entries {
		if e.URL != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], e.URL)
		}
	}

	entries, _ = store.List("", "_")
	if len(entries) != 1 || entries[0].URL != "/a_x" {
		t.Fatalf("underscore must match literally, got %#v", entries)
	}

	entries, _ = store.List("", "users")
	if len(entries) != 1 || entries[0].URL != "/d" || entries[0].DisplayTitle() != "Users Endpoint" {
		t.Fatalf("filter should match the title, got %#v", entries)
	}
}

func TestSQLiteStore_DeleteAndRenameEmpty(t *testing.T) {
	store := newTestStore(t, 0)
	if _, err := store.Put(fakeRecord("", "POST", "/x", "")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Rename("", "POST", "/x", "named"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if err := store.Rename("", "POST", "/x", ""); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	entries, _ := store.List("", "")
	if len(entries) != 1 || entries[0].Title != "" || entries[0].DisplayTitle() != "POST /x" {
		t.Fatalf("empty rename should reset the title, got %#v", entries)
	}

	if err := store.Delete("", "POST", "/x"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if rec, _ := store.Find("", "POST", "/x"); rec != nil {
		t.Fatalf("row should be gone")
	}
	if err := store.Delete("", "POST", "/x"); err != nil {
		t.Fatalf("deleting a missing row should be a no-op: %v", err)
	}
}

func TestSQLiteStore_ClosedStoreReturnsStoreError(t *testing.T) {
	store := newTestStore(t, 0)
	store.Close()

	_, err := store.Put(fakeRecord("", "GET", "/a", ""))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Op != "put" {
		t.Fatalf("unexpected op %q", storeErr.Op)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(&config.StorageConfig{Driver: "postgres", Path: "x"}, noopLogger{})
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestSQLiteStore_ManyKeys(t *testing.T) {
	store := newTestStore(t, 0)
	for i := 0; i < 250; i++ {
		if _, err := store.Put(fakeRecord("", "GET", fmt.Sprintf("/p%03d", i), "")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	entries, err := store.List("", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != DefaultListLimit {
		t.Fatalf("expected default cap of %d, got %d", DefaultListLimit, len(entries))
	}
}
