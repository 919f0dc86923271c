package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// archiveServer serves fake image archives under /docker/ with a fixed
// ETag per path and counts GET requests.
type archiveServer struct {
	mu    sync.Mutex
	etags map[string]string
	gets  map[string]int
}

func newArchiveServer() *archiveServer {
	return &archiveServer{etags: map[string]string{}, gets: map[string]int{}}
}

func (s *archiveServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	etag, ok := s.etags[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("ETag", etag)
	if r.Method == http.MethodGet {
		s.gets[r.URL.Path]++
		w.Write([]byte("archive for " + r.URL.Path))
	}
}

func (s *archiveServer) getCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

func TestFetchDownloadsAndLoads(t *testing.T) {
	backend := newArchiveServer()
	backend.etags["/docker/apm-server-6.3.3.tar.gz"] = `"etag-1"`
	backend.etags["/docker/elasticsearch-6.3.3.tar.gz"] = `"etag-2"`
	server := httptest.NewServer(backend)
	defer server.Close()

	var mu sync.Mutex
	var loaded []string
	p := NewPrefetcher(t.TempDir())
	p.Client = server.Client()
	p.Load = func(ctx context.Context, path string) error {
		mu.Lock()
		defer mu.Unlock()
		loaded = append(loaded, filepath.Base(path))
		return nil
	}

	urls := []string{
		server.URL + "/docker/apm-server-6.3.3.tar.gz",
		server.URL + "/docker/elasticsearch-6.3.3.tar.gz",
	}
	if err := p.Fetch(context.Background(), urls); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	sort.Strings(loaded)
	if len(loaded) != 2 || loaded[0] != "apm-server-6.3.3.tar.gz" || loaded[1] != "elasticsearch-6.3.3.tar.gz" {
		t.Errorf("loaded = %v", loaded)
	}

	data, err := os.ReadFile(filepath.Join(p.CacheDir, "apm-server-6.3.3.tar.gz"))
	if err != nil {
		t.Fatalf("cached archive missing: %v", err)
	}
	if string(data) != "archive for /docker/apm-server-6.3.3.tar.gz" {
		t.Errorf("cached archive content = %q", data)
	}
	etag, err := os.ReadFile(filepath.Join(p.CacheDir, "apm-server-6.3.3.tar.gz.etag"))
	if err != nil {
		t.Fatalf("etag file missing: %v", err)
	}
	if string(etag) != `"etag-1"` {
		t.Errorf("etag = %q", etag)
	}
}

func TestFetchSkipsCurrentArchives(t *testing.T) {
	backend := newArchiveServer()
	backend.etags["/docker/apm-server-6.3.3.tar.gz"] = `"etag-1"`
	server := httptest.NewServer(backend)
	defer server.Close()

	loads := 0
	p := NewPrefetcher(t.TempDir())
	p.Client = server.Client()
	p.Load = func(ctx context.Context, path string) error {
		loads++
		return nil
	}

	url := server.URL + "/docker/apm-server-6.3.3.tar.gz"
	if err := p.Fetch(context.Background(), []string{url}); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if err := p.Fetch(context.Background(), []string{url}); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if loads != 1 {
		t.Errorf("expected a single load, got %d", loads)
	}
	if got := backend.getCount("/docker/apm-server-6.3.3.tar.gz"); got != 1 {
		t.Errorf("expected a single download, got %d", got)
	}
}

func TestFetchRedownloadsOnChangedETag(t *testing.T) {
	backend := newArchiveServer()
	backend.etags["/docker/kibana-6.3.3.tar.gz"] = `"etag-1"`
	server := httptest.NewServer(backend)
	defer server.Close()

	p := NewPrefetcher(t.TempDir())
	p.Client = server.Client()
	p.Load = func(ctx context.Context, path string) error { return nil }

	url := server.URL + "/docker/kibana-6.3.3.tar.gz"
	if err := p.Fetch(context.Background(), []string{url}); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	backend.mu.Lock()
	backend.etags["/docker/kibana-6.3.3.tar.gz"] = `"etag-2"`
	backend.mu.Unlock()

	if err := p.Fetch(context.Background(), []string{url}); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if got := backend.getCount("/docker/kibana-6.3.3.tar.gz"); got != 2 {
		t.Errorf("expected a re-download on a changed etag, got %d downloads", got)
	}
}

func TestFetchPropagatesFailure(t *testing.T) {
	backend := newArchiveServer()
	server := httptest.NewServer(backend)
	defer server.Close()

	p := NewPrefetcher(t.TempDir())
	p.Client = server.Client()
	p.Load = func(ctx context.Context, path string) error { return nil }

	err := p.Fetch(context.Background(), []string{server.URL + "/docker/missing-6.3.3.tar.gz"})
	if err == nil {
		t.Fatalf("expected an error for a missing archive")
	}
}

func TestFetchLoadFailureAbortsBatch(t *testing.T) {
	backend := newArchiveServer()
	backend.etags["/docker/apm-server-6.3.3.tar.gz"] = `"etag-1"`
	server := httptest.NewServer(backend)
	defer server.Close()

	p := NewPrefetcher(t.TempDir())
	p.Client = server.Client()
	p.Load = func(ctx context.Context, path string) error {
		return os.ErrInvalid
	}

	err := p.Fetch(context.Background(), []string{server.URL + "/docker/apm-server-6.3.3.tar.gz"})
	if err == nil {
		t.Fatalf("expected the load failure to surface")
	}
	// the etag must not be recorded, the next run has to retry
	if _, err := os.Stat(filepath.Join(p.CacheDir, "apm-server-6.3.3.tar.gz.etag")); err == nil {
		t.Errorf("etag recorded despite failed load")
	}
}
