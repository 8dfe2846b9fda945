// Package fetch downloads a list of URLs into a directory with bounded
// concurrency.
package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultConcurrency = 16
	DefaultOutputDir   = "corridorwatch_html"
	UserAgent          = "corridorwatch-fetch/0.1"
)

// maxBodyBytes caps a single download.
const maxBodyBytes = 32 << 20

// Options configures a run.
type Options struct {
	Concurrency int
	Referer     string
	OutputDir   string
	Client      *http.Client
}

// Result is the outcome for one URL.
type Result struct {
	URL    string `json:"url"`
	Path   string `json:"path,omitempty"`
	Status int    `json:"status,omitempty"`
	Bytes  int64  `json:"bytes,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ReadURLs reads one URL per line, skipping blank lines and lines starting with #.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read urls: %w", err)
	}
	return urls, nil
}

// ReadURLFile reads a URL list from a file.
func ReadURLFile(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()
	return ReadURLs(f)
}

// SanitizeName derives an output file stem from a URL: the last path
// segment with ?&# replaced, else the host with non-alphanumerics replaced,
// else "index"; unparseable input yields "output".
func SanitizeName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "output"
	}
	segs := strings.Split(u.Path, "/")
	if seg := segs[len(segs)-1]; seg != "" {
		return strings.Map(func(r rune) rune {
			switch r {
			case '?', '&', '#', '\\':
				return '_'
			}
			return r
		}, seg)
	}
	host := u.Hostname()
	if host == "" {
		return "index"
	}
	return strings.Map(func(r rune) rune {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, host)
}

// Run downloads every URL into opts.OutputDir as <name>.html. Failures are
// reported per URL; the returned error covers setup only. Results keep the
// input order.
func Run(ctx context.Context, urls []string, opts Options) ([]Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]Result, len(urls))
	var mu sync.Mutex // serializes writes to the same file name
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = fetchOne(ctx, opts, u, &mu)
			return nil
		})
	}
	g.Wait()
	return results, nil
}

func fetchOne(ctx context.Context, opts Options, rawURL string, mu *sync.Mutex) Result {
	res := Result{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("User-Agent", UserAgent)
	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Path = filepath.Join(opts.OutputDir, SanitizeName(rawURL)+".html")
	mu.Lock()
	err = os.WriteFile(res.Path, body, 0644)
	mu.Unlock()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Bytes = int64(len(body))
	return res
}
