package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
)

type sqliteStore struct {
	db    *sql.DB
	limit int
	log   logger.Logger
}

func newSQLiteStore(cfg *config.StorageConfig, log logger.Logger) (Store, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(absPath))
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", stmt, err)
		}
	}

	limit := cfg.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	store := &sqliteStore{db: db, limit: limit, log: log}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("Catalog store opened", "path", absPath)
	return store, nil
}

func (s *sqliteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS request (
    group_id TEXT NOT NULL DEFAULT '',
    method TEXT NOT NULL,
    url TEXT NOT NULL,
    sort INTEGER NOT NULL DEFAULT 0,
    request TEXT NOT NULL,
    response TEXT NOT NULL,
    title TEXT,
    UNIQUE (group_id, method, url)
);
CREATE INDEX IF NOT EXISTS idx_request_group_url ON request(group_id, url);
`
	if _, err := s.db.Exec(schema); err != nil {
		return &StoreError{Op: "init schema", Cause: err}
	}
	return nil
}

func (s *sqliteStore) List(groupID, filter string) ([]Entry, error) {
	ctx := context.Background()

	query := strings.Builder{}
	query.WriteString("SELECT method, url, title FROM request WHERE group_id = ?")
	args := []interface{}{groupID}
	if filter != "" {
		pattern := "%" + escapeLike(filter) + "%"
		query.WriteString(` AND (url LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	query.WriteString(" ORDER BY url ASC, method ASC LIMIT ?")
	args = append(args, s.limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, &StoreError{Op: "list", Cause: err}
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry Entry
			title sql.NullString
		)
		if err := rows.Scan(&entry.Method, &entry.URL, &title); err != nil {
			return nil, &StoreError{Op: "list", Cause: err}
		}
		entry.Title = title.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Cause: err}
	}
	return entries, nil
}

// Put runs as one upsert. The conflict branch never touches title, so the
// value returned is whatever the row already carried.
func (s *sqliteStore) Put(rec *Record) (string, error) {
	if rec == nil {
		return "", &StoreError{Op: "put", Cause: fmt.Errorf("record is nil")}
	}
	ctx := context.Background()

	upsertSQL := `INSERT INTO request (group_id, method, url, sort, request, response)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (group_id, method, url) DO UPDATE SET
        sort = excluded.sort,
        request = excluded.request,
        response = excluded.response
    RETURNING title`

	var title sql.NullString
	err := s.db.QueryRowContext(ctx, upsertSQL,
		rec.GroupID,
		rec.Method,
		rec.URL,
		time.Now().UnixNano(),
		rec.Request,
		rec.Response,
	).Scan(&title)
	if err != nil {
		return "", &StoreError{Op: "put", Cause: err}
	}
	rec.Title = title.String
	return rec.Title, nil
}

func (s *sqliteStore) Find(groupID, method, url string) (*Record, error) {
	ctx := context.Background()
	row := s.db.QueryRowContext(ctx,
		"SELECT request, response, title FROM request WHERE group_id = ? AND method = ? AND url = ?",
		groupID, method, url,
	)

	rec := &Record{GroupID: groupID, Method: method, URL: url}
	var title sql.NullString
	err := row.Scan(&rec.Request, &rec.Response, &title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "find", Cause: err}
	}
	rec.Title = title.String
	return rec, nil
}

func (s *sqliteStore) Delete(groupID, method, url string) error {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM request WHERE group_id = ? AND method = ? AND url = ?",
		groupID, method, url,
	)
	if err != nil {
		return &StoreError{Op: "delete", Cause: err}
	}
	return nil
}

func (s *sqliteStore) Rename(groupID, method, url, title string) error {
	ctx := context.Background()
	var value interface{}
	if title != "" {
		value = title
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE request SET title = ? WHERE group_id = ? AND method = ? AND url = ?",
		value, groupID, method, url,
	)
	if err != nil {
		return &StoreError{Op: "rename", Cause: err}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
