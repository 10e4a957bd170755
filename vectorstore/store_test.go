//go:build cgo

package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		Filename:    "rules.pdf",
		ContentHash: "abc123",
		Status:      "pending",
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Document CRUD
// ---------------------------------------------------------------------------

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/rules.pdf")
	id, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocumentByPath(ctx, doc.Path)
	if err != nil {
		t.Fatalf("getting document by path: %v", err)
	}
	if got.ID != id {
		t.Errorf("id: got %d, want %d", got.ID, id)
	}
	if got.Filename != doc.Filename {
		t.Errorf("filename: got %q, want %q", got.Filename, doc.Filename)
	}
	if got.Status != "pending" {
		t.Errorf("status: got %q, want pending", got.Status)
	}
}

func TestUpsertDocumentUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/rules.pdf")
	id1, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	doc.ContentHash = "def456"
	doc.Status = "ready"
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert created a new row: id1=%d id2=%d", id1, id2)
	}

	got, err := s.GetDocumentByPath(ctx, doc.Path)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Errorf("content hash not updated: %q", got.ContentHash)
	}
}

func TestUpsertDocumentIDSurvivesReingest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/rules.pdf")
	id1, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Inserts between the upserts advance the connection's last rowid,
	// which must not leak into the id reported by the update branch.
	chunkIDs, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: id1, Content: "first", PositionInDoc: 0, TokenCount: 1},
		{DocumentID: id1, Content: "second", PositionInDoc: 1, TokenCount: 1},
		{DocumentID: id1, Content: "third", PositionInDoc: 2, TokenCount: 1},
	})
	if err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}
	if len(chunkIDs) != 3 {
		t.Fatalf("got %d chunk ids, want 3", len(chunkIDs))
	}

	doc.ContentHash = "def456"
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("re-ingest returned wrong document id: first=%d second=%d", id1, id2)
	}

	// The re-ingest pipeline clears by the returned id; with the right
	// id the old chunks must actually be gone.
	if err := s.DeleteDocumentData(ctx, id2); err != nil {
		t.Fatalf("clearing document data: %v", err)
	}
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM chunks WHERE document_id = ?", id1).Scan(&n); err != nil {
		t.Fatalf("counting chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("stale chunks remain after re-ingest clear: %d", n)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/a.pdf", "/b.pdf"} {
		if _, err := s.UpsertDocument(ctx, sampleDoc(p)); err != nil {
			t.Fatalf("upserting %s: %v", p, err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
}

// ---------------------------------------------------------------------------
// Chunks + vector search
// ---------------------------------------------------------------------------

func insertChunkWithEmbedding(t *testing.T, s *Store, docID int64, content string, pos int, emb []float32) int64 {
	t.Helper()
	ctx := context.Background()
	ids, err := s.InsertChunks(ctx, []Chunk{{
		DocumentID:    docID,
		Content:       content,
		PositionInDoc: pos,
		TokenCount:    len(content) / 4,
	}})
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}
	if err := s.InsertEmbedding(ctx, ids[0], emb); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}
	return ids[0]
}

func TestVectorSearchOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/tmp/rules.pdf"))
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}

	near := insertChunkWithEmbedding(t, s, docID, "powerplay fielding restrictions", 0, []float32{1, 0, 0, 0})
	insertChunkWithEmbedding(t, s, docID, "umpire signal reference", 1, []float32{0, 1, 0, 0})
	insertChunkWithEmbedding(t, s, docID, "super over tie-break rules", 2, []float32{0, 0, 1, 0})

	got, err := s.Search(ctx, []float32{0.99, 0.01, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d passages, want 2", len(got))
	}
	if got[0].ChunkID != near {
		t.Errorf("nearest chunk = %d, want %d", got[0].ChunkID, near)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("results not ordered by score: %f < %f", got[0].Score, got[1].Score)
	}
	if got[0].Filename != "rules.pdf" {
		t.Errorf("filename join broken: %q", got[0].Filename)
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/tmp/rules.pdf"))
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	insertChunkWithEmbedding(t, s, docID, "some content", 0, []float32{1, 0, 0, 0})

	if err := s.DeleteDocument(ctx, docID); err != nil {
		t.Fatalf("deleting document: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("post-delete search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no passages after delete, got %d", len(results))
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents after delete, got %d", len(docs))
	}
}

func TestDeleteDocumentDataKeepsRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/tmp/rules.pdf"))
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	insertChunkWithEmbedding(t, s, docID, "stale content", 0, []float32{1, 0, 0, 0})

	if err := s.DeleteDocumentData(ctx, docID); err != nil {
		t.Fatalf("deleting document data: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("post-delete search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no passages, got %d", len(results))
	}
	if _, err := s.GetDocumentByPath(ctx, "/tmp/rules.pdf"); err != nil {
		t.Errorf("document record should survive data deletion: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Question log
// ---------------------------------------------------------------------------

func TestLogQuestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.LogQuestion(ctx, QuestionLog{
		Question:    "How many runs did V Kohli score in 2016?",
		Answer:      "V Kohli scored 973 runs in 2016.",
		Verdict:     "accepted",
		Rewrites:    0,
		Sources:     []string{"ipl_deliveries"},
		TotalTokens: 321,
	})
	if err != nil {
		t.Fatalf("logging question: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM question_log").Scan(&count); err != nil {
		t.Fatalf("counting log rows: %v", err)
	}
	if count != 1 {
		t.Errorf("question_log rows = %d, want 1", count)
	}
}
