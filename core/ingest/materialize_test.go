package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"melodex/storage"
)

// fakeUploader records uploads in memory.
type fakeUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
	fail    bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, r io.Reader, size int64, folder, name, contentType string) (storage.Ref, error) {
	if f.fail {
		return storage.Ref{}, errors.New("upload rejected")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Ref{}, err
	}
	key := folder + "/" + name
	f.mu.Lock()
	f.uploads[key] = data
	f.mu.Unlock()
	return storage.Ref{Key: key, URL: "http://assets.local/" + key}, nil
}

func TestMaterializeFirstSourceWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		fmt.Fprint(w, "primary-bytes")
	}))
	defer srv.Close()

	up := newFakeUploader()
	m := NewMaterializer(up, 1024)

	ref, err := m.Materialize(context.Background(), []string{srv.URL + "/a.mp3", "http://never-reached.invalid/b.mp3"}, AssetAudio, "t1")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if ref.Key != "songs/t1.mp3" {
		t.Errorf("Key = %q, want songs/t1.mp3", ref.Key)
	}
	if string(up.uploads["songs/t1.mp3"]) != "primary-bytes" {
		t.Errorf("uploaded bytes = %q", up.uploads["songs/t1.mp3"])
	}
}

func TestMaterializeFallsBackInPriorityOrder(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fallback-bytes")
	}))
	defer secondary.Close()

	up := newFakeUploader()
	m := NewMaterializer(up, 1024)

	ref, err := m.Materialize(context.Background(), []string{primary.URL + "/a.mp3", secondary.URL + "/b.mp3"}, AssetAudio, "t2")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if string(up.uploads[ref.Key]) != "fallback-bytes" {
		t.Errorf("uploaded bytes = %q, want fallback-bytes", up.uploads[ref.Key])
	}
}

func TestMaterializeSkipsEmptySources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "x")
	}))
	defer srv.Close()

	m := NewMaterializer(newFakeUploader(), 1024)
	if _, err := m.Materialize(context.Background(), []string{"", srv.URL + "/a.mp3"}, AssetSongArt, "t3"); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
}

func TestMaterializeAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewMaterializer(newFakeUploader(), 1024)
	_, err := m.Materialize(context.Background(), []string{srv.URL + "/a.mp3", srv.URL + "/b.mp3"}, AssetAudio, "t4")
	if !errors.Is(err, ErrNoAssetAvailable) {
		t.Errorf("err = %v, want ErrNoAssetAvailable", err)
	}

	_, err = m.Materialize(context.Background(), []string{"", ""}, AssetAudio, "t5")
	if !errors.Is(err, ErrNoAssetAvailable) {
		t.Errorf("err = %v, want ErrNoAssetAvailable for no usable sources", err)
	}
}

func TestMaterializeRejectsDeclaredOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := strings.Repeat("x", 2048)
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		io.WriteString(w, body)
	}))
	defer srv.Close()

	m := NewMaterializer(newFakeUploader(), 1024)
	_, err := m.Materialize(context.Background(), []string{srv.URL + "/big.mp3"}, AssetAudio, "t6")
	if !errors.Is(err, ErrNoAssetAvailable) {
		t.Errorf("err = %v, want ErrNoAssetAvailable", err)
	}
}

func TestCappedReaderAbortsLyingSource(t *testing.T) {
	// The reader must error once past the cap instead of truncating.
	c := &cappedReader{r: strings.NewReader(strings.Repeat("x", 100)), remaining: 11}
	data, err := io.ReadAll(c)
	if !errors.Is(err, errAssetTooLarge) {
		t.Fatalf("err = %v, want errAssetTooLarge", err)
	}
	if len(data) > 11 {
		t.Errorf("read %d bytes past the cap", len(data))
	}
}

func TestCappedReaderAllowsExactCeiling(t *testing.T) {
	c := &cappedReader{r: strings.NewReader("0123456789"), remaining: 11}
	data, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if string(data) != "0123456789" {
		t.Errorf("data = %q", data)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		src         string
		contentType string
		want        string
	}{
		{"http://x/a.mp3?token=1", "", ".mp3"},
		{"http://x/a", "audio/mpeg", ".mp3"},
		{"http://x/a", "image/jpeg", ".jpg"},
		{"http://x/a", "image/png", ".png"},
		{"http://x/a", "application/octet-stream", ""},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.src, tt.contentType); got != tt.want {
			t.Errorf("extensionFor(%q, %q) = %q, want %q", tt.src, tt.contentType, got, tt.want)
		}
	}
}
