//go:build cgo

package crickrag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vmreddy/crickrag/llm"
	"github.com/vmreddy/crickrag/vectorstore"
	"github.com/vmreddy/crickrag/workflow"
)

type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (f *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func TestStoreRetriever(t *testing.T) {
	dir := t.TempDir()
	store, err := vectorstore.New(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	docID, err := store.UpsertDocument(ctx, vectorstore.Document{
		Path:     "/docs/rules.pdf",
		Filename: "rules.pdf",
		Status:   "ready",
	})
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	chunkIDs, err := store.InsertChunks(ctx, []vectorstore.Chunk{
		{DocumentID: docID, Content: "powerplay fielding restrictions", PositionInDoc: 0, TokenCount: 4},
	})
	if err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}
	if err := store.InsertEmbedding(ctx, chunkIDs[0], []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}

	r := &storeRetriever{
		store:    store,
		embedder: &fixedEmbedder{vec: []float32{1, 0, 0, 0}},
		k:        4,
	}
	docs, err := r.Retrieve(ctx, "what are the powerplay rules?")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if docs[0].Source != workflow.SourceDocument {
		t.Errorf("Source = %q, want %q", docs[0].Source, workflow.SourceDocument)
	}
	if docs[0].Filename != "rules.pdf" {
		t.Errorf("Filename = %q, want rules.pdf", docs[0].Filename)
	}
	if docs[0].Content != "powerplay fielding restrictions" {
		t.Errorf("Content = %q", docs[0].Content)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := vectorstore.New(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	e := &Engine{store: store}

	err = e.DeleteDocument(ctx, 9999)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}

	id, err := store.UpsertDocument(ctx, vectorstore.Document{
		Path: "/docs/a.pdf", Filename: "a.pdf", Status: "ready",
	})
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if err := e.DeleteDocument(ctx, id); err != nil {
		t.Errorf("deleting existing document: %v", err)
	}
}
