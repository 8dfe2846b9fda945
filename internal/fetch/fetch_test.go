package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadURLsSkipsBlankAndComments(t *testing.T) {
	in := "https://a.example/x\n\n  # comment\n  https://b.example/  \n#https://c.example\n"
	urls, err := ReadURLs(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://a.example/x", "https://b.example/"}
	if len(urls) != len(want) {
		t.Fatalf("got %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("url %d = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/docs/page.html", "page.html"},
		{"https://example.com/search?q=1&r=2", "search"},
		{"https://example.com/a%3Fb%26c", "a_b_c"},
		{"https://sub.example.com/", "sub_example_com"},
		{"https://sub.example.com", "sub_example_com"},
		{"not a url", "output"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunWritesFilesWithHeaders(t *testing.T) {
	var gotUA, gotRef atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		gotRef.Store(r.Header.Get("Referer"))
		w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	defer ts.Close()

	dir := filepath.Join(t.TempDir(), "out")
	results, err := Run(context.Background(), []string{ts.URL + "/one", ts.URL + "/two"}, Options{
		Referer:   "https://referrer.example/",
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Error != "" || r.Status != http.StatusOK {
			t.Errorf("result %+v", r)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "two.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<html>/two</html>" {
		t.Errorf("two.html = %q", data)
	}
	if gotUA.Load() != UserAgent {
		t.Errorf("User-Agent = %v", gotUA.Load())
	}
	if gotRef.Load() != "https://referrer.example/" {
		t.Errorf("Referer = %v", gotRef.Load())
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inflight, peak int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	}))
	defer ts.Close()

	var urls []string
	for i := 0; i < 12; i++ {
		urls = append(urls, ts.URL+"/p"+string(rune('a'+i)))
	}
	if _, err := Run(context.Background(), urls, Options{Concurrency: 3, OutputDir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak)
	}
}

func TestRunReportsPerURLErrors(t *testing.T) {
	results, err := Run(context.Background(), []string{"http://127.0.0.1:1/unreachable", "::bad"}, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Error == "" {
			t.Errorf("expected error for %s", r.URL)
		}
	}
}
