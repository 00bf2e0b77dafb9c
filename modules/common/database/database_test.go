package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"canvas-image-relay/modules/common/config"
	"canvas-image-relay/modules/common/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.Config{SupabaseURL: srv.URL, SupabaseServiceKey: "svc", SupabaseTable: "generations"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, &hits
}

func TestInsertGenerationReturnsID(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/generations" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":7}]`))
	})

	id, err := c.InsertGeneration(context.Background(), model.Generation{
		Kind: model.KindGenerate, Prompt: "a red apple", Seed: 42, FilePath: "generate/x.webp",
	})
	if err != nil {
		t.Fatalf("InsertGeneration: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d", id)
	}
	if got["prompt"] != "a red apple" || got["file_path"] != "generate/x.webp" {
		t.Fatalf("row = %v", got)
	}
}

func TestInsertGenerationHonorsCancelledContext(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1}]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.InsertGeneration(ctx, model.Generation{Kind: model.KindGenerate}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("request sent after cancellation")
	}
}
