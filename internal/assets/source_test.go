package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHTTPSourceOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/Files/a.txt":
			_, _ = w.Write([]byte("hello"))
		case "/data/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/data", time.Second)
	data, err := readAll(context.Background(), src, "Files/a.txt")
	if err != nil {
		t.Fatalf("readAll failed: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}

	if _, err := src.Open(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.Open(context.Background(), "broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-404 error, got %v", err)
	}
}

func TestMuxSourceRoutesRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "local.txt"), []byte("local"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	src := NewSource(root, time.Second)

	data, err := readAll(context.Background(), src, "local.txt")
	if err != nil || string(data) != "local" {
		t.Fatalf("expected local data, got %q (%v)", data, err)
	}
	data, err = readAll(context.Background(), src, srv.URL+"/x.npy")
	if err != nil || string(data) != "remote" {
		t.Fatalf("expected remote data, got %q (%v)", data, err)
	}
	if _, err := src.Open(context.Background(), "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMaterializeDownloadsOnce(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	cacheDir := t.TempDir()

	first, err := Materialize(context.Background(), src, cacheDir, "Videos/e_left_scaled.mp4")
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if first.Cached {
		t.Fatalf("expected first call to download")
	}
	if first.Size != int64(len("video-bytes")) {
		t.Fatalf("unexpected size %d", first.Size)
	}
	second, err := Materialize(context.Background(), src, cacheDir, "Videos/e_left_scaled.mp4")
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if !second.Cached || second.Path != first.Path {
		t.Fatalf("expected cached hit at %s, got %+v", first.Path, second)
	}
	if hits != 1 {
		t.Fatalf("expected one download, got %d", hits)
	}
}

func TestBarrierSignalsWhenDrained(t *testing.T) {
	b := newBarrier([]string{"a", "b", "c"})
	if b.Complete("b") {
		t.Fatalf("barrier drained early")
	}
	if b.Complete("zzz") {
		t.Fatalf("unknown key should not drain")
	}
	if b.Complete("c") {
		t.Fatalf("barrier drained early")
	}
	select {
	case <-b.Ready():
		t.Fatalf("ready before all keys completed")
	default:
	}
	if !b.Complete("a") {
		t.Fatalf("expected last completion to drain")
	}
	if b.Complete("a") {
		t.Fatalf("repeat completion should not drain again")
	}
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if b.Outstanding() != 0 {
		t.Fatalf("expected no outstanding keys, got %d", b.Outstanding())
	}
}

func TestBarrierEmptyIsReady(t *testing.T) {
	b := newBarrier(nil)
	select {
	case <-b.Ready():
	default:
		t.Fatalf("empty barrier should be ready")
	}
}

func TestBarrierWaitCancelled(t *testing.T) {
	b := newBarrier([]string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
