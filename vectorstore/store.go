// Package vectorstore persists ingested document passages and their
// embeddings in SQLite, using the sqlite-vec extension for KNN retrieval.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk represents a row in the chunks table.
type Chunk struct {
	ID            int64  `json:"id"`
	DocumentID    int64  `json:"document_id"`
	Content       string `json:"content"`
	PositionInDoc int    `json:"position_in_doc"`
	TokenCount    int    `json:"token_count"`
}

// Passage is a retrieved chunk with its similarity score and document info.
type Passage struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
}

// QuestionLog represents a row in the question_log audit table.
type QuestionLog struct {
	Question    string      `json:"question"`
	Answer      string      `json:"answer"`
	Verdict     string      `json:"verdict"`
	Degraded    bool        `json:"degraded"`
	Rewrites    int         `json:"rewrites"`
	Sources     interface{} `json:"sources"`
	TotalTokens int         `json:"total_tokens"`
}

// Store wraps the SQLite database for document persistence and retrieval.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record. Returns the document ID.
// RETURNING is used because LastInsertId reports the connection's last
// INSERT, which on the update branch of the upsert is some unrelated row.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (path, filename, content_hash, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, doc.Path, doc.Filename, doc.ContentHash, doc.Status).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, content_hash, status, created_at, updated_at
		FROM documents WHERE path = ?
	`, path).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.ContentHash,
		&doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, content_hash, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.ContentHash,
			&d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus sets the document processing status.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteDocument removes a document, its chunks, and their embeddings.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_chunks WHERE chunk_id IN
			(SELECT id FROM chunks WHERE document_id = ?)
	`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// DeleteDocumentData removes the chunks and embeddings of a document,
// keeping the document record (used on re-ingest).
func (s *Store) DeleteDocumentData(ctx context.Context, docID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_chunks WHERE chunk_id IN
			(SELECT id FROM chunks WHERE document_id = ?)
	`, docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Chunk operations ---

// InsertChunks inserts chunks in order, returning their assigned IDs.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, content, position_in_doc, token_count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx, c.DocumentID, c.Content, c.PositionInDoc, c.TokenCount)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertEmbedding stores a vector embedding for a chunk.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		chunkID, serializeFloat32(embedding))
	return err
}

// Search performs a KNN search returning the top-k nearest passages.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance,
			c.content, c.document_id,
			d.filename, d.path
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Passage
	for rows.Next() {
		var p Passage
		var distance float64
		if err := rows.Scan(&p.ChunkID, &distance,
			&p.Content, &p.DocumentID, &p.Filename, &p.Path); err != nil {
			return nil, err
		}
		// Convert distance to similarity score (1 - distance for cosine).
		p.Score = 1.0 - distance
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Audit log ---

// LogQuestion records a completed workflow invocation. Failures are
// returned but callers typically only log them.
func (s *Store) LogQuestion(ctx context.Context, q QuestionLog) error {
	sources, err := json.Marshal(q.Sources)
	if err != nil {
		sources = []byte("null")
	}
	degraded := 0
	if q.Degraded {
		degraded = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO question_log (question, answer, verdict, degraded, rewrites, sources, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, q.Question, q.Answer, q.Verdict, degraded, q.Rewrites, string(sources), q.TotalTokens)
	return err
}

// serializeFloat32 encodes a vector in the little-endian layout sqlite-vec
// expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
