// Package images pre-fetches container image archives that are not yet
// published to a public registry, i.e. build candidate artifacts on the
// staging host, and loads them into the local docker daemon.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/elastic/apm-integration-testing/internal/docker"
)

const defaultParallelism = 4

// Prefetcher downloads image archives into a local cache keyed by the
// remote ETag, so an unchanged artifact is never transferred twice.
type Prefetcher struct {
	CacheDir string
	Client   *http.Client

	// Load imports a downloaded archive; it defaults to docker load.
	Load func(ctx context.Context, path string) error

	// Parallelism bounds the concurrent downloads, default 4.
	Parallelism int
}

func NewPrefetcher(cacheDir string) *Prefetcher {
	return &Prefetcher{
		CacheDir: cacheDir,
		Client:   http.DefaultClient,
		Load:     docker.LoadImage,
	}
}

// Fetch downloads and loads every URL through a bounded worker pool.
// The first failure cancels the remaining work: a partially fetched
// image set is useless, so the whole batch either succeeds or fails.
func (p *Prefetcher) Fetch(ctx context.Context, urls []string) error {
	g, ctx := errgroup.WithContext(ctx)
	limit := p.Parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}
	g.SetLimit(limit)
	for _, u := range urls {
		g.Go(func() error {
			if err := p.fetch(ctx, u); err != nil {
				return fmt.Errorf("error while fetching %s: %w", u, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Prefetcher) fetch(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	filename := path.Base(parsed.Path)
	target := filepath.Join(p.CacheDir, filename)
	etagFile := target + ".etag"

	cached := ""
	if data, err := os.ReadFile(etagFile); err == nil {
		cached = strings.TrimSpace(string(data))
	}

	remote, err := p.remoteETag(ctx, rawURL)
	if err != nil {
		return err
	}
	if remote != "" && remote == cached {
		fmt.Printf("Skipping download of %s, local file is current\n", filename)
		return nil
	}

	fmt.Println("downloading", rawURL)
	if err := os.MkdirAll(p.CacheDir, 0o755); err != nil {
		return err
	}
	if err := p.download(ctx, rawURL, target); err != nil {
		return err
	}
	if err := p.Load(ctx, target); err != nil {
		return err
	}
	return os.WriteFile(etagFile, []byte(remote), 0o644)
}

func (p *Prefetcher) remoteETag(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Header.Get("ETag"), nil
}

func (p *Prefetcher) download(ctx context.Context, rawURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (p *Prefetcher) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
