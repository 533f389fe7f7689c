package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	syncerrors "github.com/notevec/notevec/internal/errors"
)

const dbFileName = "notevec.db"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
	name     TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT NOT NULL,
	collection  TEXT NOT NULL,
	content     TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	title       TEXT NOT NULL,
	modified    INTEGER NOT NULL,
	seq         INTEGER NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	adjacent    TEXT NOT NULL DEFAULT '',
	embedding   BLOB,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(collection, doc_id, seq);
`

// LocalStore is a durable Store backed by a single SQLite database plus
// per-collection in-memory HNSW indexes. Records and their embedding
// blobs live in SQLite; each collection's index is rebuilt from the
// blobs the first time it is queried.
type LocalStore struct {
	mu         sync.Mutex
	db         *sql.DB
	dir        string
	dimensions int
	lock       *dirLock
	indexes    map[string]*vectorIndex
	closed     bool
}

// OpenLocalStore opens (creating if necessary) a local store rooted at
// dir. The directory is flock-guarded so two processes cannot mutate the
// same store concurrently.
func OpenLocalStore(dir string, dimensions int) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, syncerrors.StorageError("create store directory", err)
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, err
	}

	dsn := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		lock.release()
		return nil, syncerrors.StorageError("open database", err)
	}

	// WAL and busy timeout must be set via PRAGMA statements, DSN
	// params may be ignored by modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			lock.release()
			return nil, syncerrors.StorageError("set pragma: "+p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		lock.release()
		return nil, syncerrors.StorageError("initialize schema", err)
	}

	return &LocalStore{
		db:         db,
		dir:        dir,
		dimensions: dimensions,
		lock:       lock,
		indexes:    make(map[string]*vectorIndex),
	}, nil
}

// Create creates a collection with the given metadata.
func (s *LocalStore) Create(ctx context.Context, name string, metadata map[string]string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, syncerrors.StorageError("store is closed", nil)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, syncerrors.StorageError("encode metadata", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, metadata) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, string(metaJSON))
	if err != nil {
		return nil, syncerrors.StorageError("create collection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, syncerrors.StorageError("collection already exists: "+name, nil)
	}

	return &sqliteCollection{store: s, name: name}, nil
}

// Open returns an existing collection, or ErrNotFound.
func (s *LocalStore) Open(ctx context.Context, name string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, syncerrors.StorageError("store is closed", nil)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, syncerrors.StorageError("lookup collection", err)
	}
	if exists == 0 {
		return nil, syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+name, ErrNotFound)
	}
	return &sqliteCollection{store: s, name: name}, nil
}

// Drop removes a collection and all its records.
func (s *LocalStore) Drop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return syncerrors.StorageError("store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return syncerrors.StorageError("drop collection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+name, ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return syncerrors.StorageError("drop collection chunks", err)
	}
	delete(s.indexes, name)
	return nil
}

// List returns all collection names, sorted.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, syncerrors.StorageError("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, syncerrors.StorageError("list collections", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, syncerrors.StorageError("scan collection name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close checkpoints the WAL, closes the database, and releases the
// directory lock.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.lock.release()
	s.indexes = nil
	if err != nil {
		return syncerrors.StorageError("close database", err)
	}
	return nil
}

// index returns the collection's vector index, building it from the
// stored embedding blobs on first use.
func (s *LocalStore) index(ctx context.Context, name string) (*vectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, syncerrors.StorageError("store is closed", nil)
	}
	if idx, ok := s.indexes[name]; ok {
		return idx, nil
	}

	idx := newVectorIndex(s.dimensions)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM chunks WHERE collection = ? AND embedding IS NOT NULL`, name)
	if err != nil {
		return nil, syncerrors.StorageError("load embeddings", err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, syncerrors.StorageError("scan embedding", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerrors.StorageError("iterate embeddings", err)
	}
	if err := idx.add(ids, vectors); err != nil {
		return nil, err
	}
	s.indexes[name] = idx
	return idx, nil
}

type sqliteCollection struct {
	store *LocalStore
	name  string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) Metadata(ctx context.Context) (map[string]string, error) {
	var raw string
	err := c.store.db.QueryRowContext(ctx,
		`SELECT metadata FROM collections WHERE name = ?`, c.name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+c.name, ErrNotFound)
	}
	if err != nil {
		return nil, syncerrors.StorageError("read metadata", err)
	}

	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, syncerrors.StorageError("decode metadata", err)
	}
	return meta, nil
}

func (c *sqliteCollection) SetMetadata(ctx context.Context, meta map[string]string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return syncerrors.StorageError("encode metadata", err)
	}
	res, err := c.store.db.ExecContext(ctx,
		`UPDATE collections SET metadata = ? WHERE name = ?`, string(metaJSON), c.name)
	if err != nil {
		return syncerrors.StorageError("write metadata", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+c.name, ErrNotFound)
	}
	return nil
}

func (c *sqliteCollection) Get(ctx context.Context, filter Filter, limit, offset int) ([]*Record, error) {
	where, args := buildWhere(filter)
	query := `SELECT id, content, doc_id, title, modified, seq, fingerprint, adjacent
		FROM chunks WHERE collection = ?` + where + ` ORDER BY doc_id, seq, id`
	args = append([]any{c.name}, args...)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	} else if offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncerrors.StorageError("query chunks", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(&r.ID, &r.Content, &r.DocID, &r.Title, &r.Modified, &r.Seq, &r.Fingerprint, &r.Adjacent); err != nil {
			return nil, syncerrors.StorageError("scan chunk", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (c *sqliteCollection) Add(ctx context.Context, records []*Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return syncerrors.StorageError("records and vectors length mismatch", nil)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return syncerrors.StorageError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, collection, content, doc_id, title, modified, seq, fingerprint, adjacent, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			doc_id = excluded.doc_id,
			title = excluded.title,
			modified = excluded.modified,
			seq = excluded.seq,
			fingerprint = excluded.fingerprint,
			adjacent = excluded.adjacent,
			embedding = excluded.embedding`)
	if err != nil {
		return syncerrors.StorageError("prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range records {
		blob := encodeVector(vectors[i])
		if _, err := stmt.ExecContext(ctx, r.ID, c.name, r.Content, r.DocID, r.Title,
			r.Modified, r.Seq, r.Fingerprint, r.Adjacent, blob); err != nil {
			return syncerrors.StorageError("insert chunk "+r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return syncerrors.StorageError("commit insert", err)
	}

	if idx, ok := c.cachedIndex(); ok {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		if err := idx.add(ids, vectors); err != nil {
			return err
		}
	}
	return nil
}

func (c *sqliteCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, c.name)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := c.store.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return syncerrors.StorageError("delete chunks", err)
	}

	if idx, ok := c.cachedIndex(); ok {
		idx.remove(ids)
	}
	return nil
}

func (c *sqliteCollection) Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error) {
	idx, err := c.store.index(ctx, c.name)
	if err != nil {
		return nil, err
	}
	hits, err := idx.search(vector, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	recs, err := c.Get(ctx, Filter{IDs: ids}, 0, 0)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Record, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
	}

	results := make([]*QueryResult, 0, len(hits))
	for _, h := range hits {
		r, ok := byID[h.id]
		if !ok {
			continue
		}
		results = append(results, &QueryResult{Record: r, Score: h.score, Distance: h.distance})
	}
	return results, nil
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, c.name).Scan(&n)
	if err != nil {
		return 0, syncerrors.StorageError("count chunks", err)
	}
	return n, nil
}

// cachedIndex returns the collection's index only if it was already
// built. Mutations to an unbuilt index are deferred to the rebuild on
// first query.
func (c *sqliteCollection) cachedIndex() (*vectorIndex, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.closed || c.store.indexes == nil {
		return nil, false
	}
	idx, ok := c.store.indexes[c.name]
	return idx, ok
}

// buildWhere translates a Filter into SQL appended after the collection
// predicate. Returns the clause (with leading " AND ") and its args.
func buildWhere(f Filter) (string, []any) {
	clause, args := filterSQL(f)
	if clause == "" {
		return "", nil
	}
	return " AND " + clause, args
}

func filterSQL(f Filter) (string, []any) {
	var parts []string
	var args []any

	if f.DocID != "" {
		parts = append(parts, "doc_id = ?")
		args = append(args, f.DocID)
	}
	if f.IDs != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.IDs)), ",")
		if placeholders == "" {
			placeholders = "NULL"
		}
		parts = append(parts, "id IN ("+placeholders+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.SeqMin != nil {
		parts = append(parts, "seq >= ?")
		args = append(args, *f.SeqMin)
	}
	if f.SeqMax != nil {
		parts = append(parts, "seq <= ?")
		args = append(args, *f.SeqMax)
	}
	if len(f.Any) > 0 {
		var subs []string
		for _, sub := range f.Any {
			subClause, subArgs := filterSQL(sub)
			if subClause == "" {
				subClause = "1=1"
			}
			subs = append(subs, "("+subClause+")")
			args = append(args, subArgs...)
		}
		parts = append(parts, "("+strings.Join(subs, " OR ")+")")
	}

	return strings.Join(parts, " AND "), args
}

// encodeVector packs a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, syncerrors.StorageError("malformed embedding blob", nil)
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
