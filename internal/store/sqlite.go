package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// SQLiteStore implements MetadataStore on SQLite with WAL mode for
// concurrent reader access. An empty path opens an in-memory database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the metadata database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer connection to avoid lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN params; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL DEFAULT 'other',
		title        TEXT NOT NULL DEFAULT '',
		programs     TEXT NOT NULL DEFAULT '[]',
		tags         TEXT NOT NULL DEFAULT '[]',
		published_at INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		content     TEXT NOT NULL,
		created_at  INTEGER NOT NULL DEFAULT 0,
		updated_at  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, position);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocuments upserts document metadata rows.
func (s *SQLiteStore) SaveDocuments(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, type, title, programs, tags, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		programs, err := json.Marshal(emptyIfNil(doc.Programs))
		if err != nil {
			return fmt.Errorf("marshal programs for %s: %w", doc.ID, err)
		}
		tags, err := json.Marshal(emptyIfNil(doc.Tags))
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", doc.ID, err)
		}
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, string(doc.Type), doc.Title,
			string(programs), string(tags), unixOrZero(doc.PublishedAt), createdAt.Unix()); err != nil {
			return fmt.Errorf("save document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument returns a document by ID, or (nil, nil) on a miss.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, programs, tags, published_at, created_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// GetDocuments batch-fetches documents; missing IDs are simply absent
// from the returned map.
func (s *SQLiteStore) GetDocuments(ctx context.Context, ids []string) (map[string]*Document, error) {
	if len(ids) == 0 {
		return map[string]*Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf(`
		SELECT id, type, title, programs, tags, published_at, created_at
		FROM documents WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result[doc.ID] = doc
	}
	return result, rows.Err()
}

// DeleteDocuments removes documents; chunks cascade.
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf("DELETE FROM documents WHERE id IN (%s)", placeholders(len(ids)))
	if _, err := s.db.ExecContext(ctx, query, toArgs(ids)...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// SaveChunks upserts chunk rows.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, document_id, position, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range chunks {
		createdAt := now
		if !c.CreatedAt.IsZero() {
			createdAt = c.CreatedAt.Unix()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Position, c.Content, createdAt, now); err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk returns a chunk by ID, or (nil, nil) on a miss.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, position, content, created_at, updated_at
		FROM chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return chunk, err
}

// GetChunks batch-fetches chunks in a single query.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, position, content, created_at, updated_at
		FROM chunks WHERE id IN (%s)`, placeholders(len(ids)))

	return s.queryChunks(ctx, query, toArgs(ids)...)
}

// GetChunksByDocument returns a document's chunks in position order.
func (s *SQLiteStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	return s.queryChunks(ctx, `
		SELECT id, document_id, position, content, created_at, updated_at
		FROM chunks WHERE document_id = ? ORDER BY position`, documentID)
}

// AllChunks returns every chunk, ordered by ID for deterministic snapshot builds.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	return s.queryChunks(ctx, `
		SELECT id, document_id, position, content, created_at, updated_at
		FROM chunks ORDER BY id`)
}

// DeleteChunks removes chunks by ID.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", placeholders(len(ids)))
	if _, err := s.db.ExecContext(ctx, query, toArgs(ids)...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// ChunkIDsMatching resolves a metadata filter to matching chunk IDs.
// Type and year clauses run in SQL; program/tag intersection runs in Go
// because the sets are stored as JSON arrays.
func (s *SQLiteStore) ChunkIDsMatching(ctx context.Context, f *MetadataFilter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var conditions []string
	var args []any
	if f != nil && len(f.Types) > 0 {
		conditions = append(conditions, fmt.Sprintf("d.type IN (%s)", placeholders(len(f.Types))))
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	query := `
		SELECT c.id, d.programs, d.tags, d.published_at
		FROM chunks c JOIN documents d ON d.id = c.document_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matching chunks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, programsJSON, tagsJSON string
		var publishedAt int64
		if err := rows.Scan(&id, &programsJSON, &tagsJSON, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if f == nil {
			ids = append(ids, id)
			continue
		}
		doc := &Document{
			Programs:    unmarshalStrings(programsJSON),
			Tags:        unmarshalStrings(tagsJSON),
			PublishedAt: timeOrZero(publishedAt),
		}
		// Type already matched in SQL; re-check the remaining clauses.
		remainder := &MetadataFilter{
			Programs: f.Programs,
			Tags:     f.Tags,
			YearFrom: f.YearFrom,
			YearTo:   f.YearTo,
		}
		if remainder.Matches(doc) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var docType, programsJSON, tagsJSON string
	var publishedAt, createdAt int64
	if err := row.Scan(&doc.ID, &docType, &doc.Title, &programsJSON, &tagsJSON, &publishedAt, &createdAt); err != nil {
		return nil, err
	}
	doc.Type = DocumentType(docType)
	doc.Programs = unmarshalStrings(programsJSON)
	doc.Tags = unmarshalStrings(tagsJSON)
	doc.PublishedAt = timeOrZero(publishedAt)
	doc.CreatedAt = time.Unix(createdAt, 0)
	return &doc, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unmarshalStrings(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
