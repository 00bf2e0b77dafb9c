package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"canvas-image-relay/modules/common/config"
)

func TestUploadImageConvertsAndPosts(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{SupabaseURL: srv.URL + "/", SupabaseServiceKey: "svc", SupabaseBucket: "generated"}
	c := NewClient(cfg, func(data []byte, _ float32) ([]byte, error) {
		return append([]byte("webp:"), data...), nil
	})

	asset, err := c.UploadImage(context.Background(), []byte("png"), "generate")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/storage/v1/object/generated/generate/") || !strings.HasSuffix(gotPath, ".webp") {
		t.Fatalf("path = %s", gotPath)
	}
	if gotAuth != "Bearer svc" || gotType != "image/webp" || gotBody != "webp:png" {
		t.Fatalf("auth=%q type=%q body=%q", gotAuth, gotType, gotBody)
	}
	if asset.Size != int64(len("webp:png")) || !strings.HasSuffix(gotPath, asset.Path) {
		t.Fatalf("asset = %+v", asset)
	}
}

func TestUploadImageReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(&config.Config{SupabaseURL: srv.URL, SupabaseBucket: "x"}, nil)
	if _, err := c.UploadImage(context.Background(), []byte("png"), "inpaint"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
