package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/corridorwatch/internal/alert"
)

// withHash pins ExpectedHash and the tamper dir for one test.
func withHash(t *testing.T, hash string) string {
	t.Helper()
	oldHash, oldDir := ExpectedHash, TamperLogDir
	dir := filepath.Join(t.TempDir(), "tamper")
	ExpectedHash, TamperLogDir = hash, dir
	t.Cleanup(func() { ExpectedHash, TamperLogDir = oldHash, oldDir })
	return dir
}

func TestVerifySkipsWhenNoExpectedHash(t *testing.T) {
	withHash(t, "")
	oldPaths := ChecksumPaths
	ChecksumPaths = []string{"/nonexistent/path"}
	defer func() { ChecksumPaths = oldPaths }()

	called := false
	err := Verify(func() []alert.AlertConfig { called = true; return nil })
	if err != nil {
		t.Fatalf("expected nil error for empty ExpectedHash, got %v", err)
	}
	if called {
		t.Error("alerts should only be loaded on mismatch")
	}
}

func TestVerifyPassesWithSelfHash(t *testing.T) {
	self, err := HashSelf()
	if err != nil {
		t.Fatal(err)
	}
	withHash(t, strings.ToUpper(self))
	if err := Verify(nil); err != nil {
		t.Fatalf("expected match for own hash, got %v", err)
	}
}

func TestHashFileMatchesSHA256(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "test-bin")
	content := []byte("test binary content")
	if err := os.WriteFile(tmp, content, 0o755); err != nil {
		t.Fatal(err)
	}

	h := sha256.Sum256(content)
	actual, err := hashFile(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if actual != hex.EncodeToString(h[:]) {
		t.Fatalf("hashFile = %s", actual)
	}
}

func TestVerifyFailsWithWrongHash(t *testing.T) {
	withHash(t, "deadbeef")
	if err := Verify(nil); err == nil {
		t.Fatal("expected error for wrong hash, got nil")
	}
}

func TestTamperEventWrittenOnMismatch(t *testing.T) {
	dir := withHash(t, "deadbeef")
	Verify(nil)

	data, err := os.ReadFile(filepath.Join(dir, "tamper.jsonl"))
	if err != nil {
		t.Fatalf("expected tamper log to exist: %v", err)
	}

	var event TamperEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event); err != nil {
		t.Fatalf("failed to parse tamper event: %v", err)
	}
	if event.Type != EventType {
		t.Errorf("expected type %s, got %s", EventType, event.Type)
	}
	if event.ExpectedHash != "deadbeef" {
		t.Errorf("expected hash deadbeef, got %s", event.ExpectedHash)
	}
	if event.ActualHash == "" || event.Binary == "" || event.Timestamp == "" {
		t.Errorf("incomplete event: %+v", event)
	}
}

func TestTamperLogPermissions(t *testing.T) {
	dir := withHash(t, "deadbeef")
	Verify(nil)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if dirInfo.Mode().Perm() != 0o700 {
		t.Errorf("expected dir perm 0700, got %04o", dirInfo.Mode().Perm())
	}

	fileInfo, err := os.Stat(filepath.Join(dir, "tamper.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if fileInfo.Mode().Perm() != 0o600 {
		t.Errorf("expected file perm 0600, got %04o", fileInfo.Mode().Perm())
	}
}

func TestWebhookFiredOnTamper(t *testing.T) {
	var mu sync.Mutex
	var received [][]byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	withHash(t, "deadbeef")
	err := Verify(func() []alert.AlertConfig {
		return []alert.AlertConfig{
			{URL: srv.URL, Format: "generic", Events: []string{EventType}},
			{URL: srv.URL, Format: "generic", Events: []string{"caution"}},
		}
	})
	if err == nil {
		t.Fatal("expected mismatch error")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 webhook call, got %d", len(received))
	}

	var ev alert.AlertEvent
	if err := json.Unmarshal(received[0], &ev); err != nil {
		t.Fatalf("failed to parse webhook payload: %v", err)
	}
	if ev.Type != EventType || ev.Decision != "deny" || ev.Kind != "integrity" {
		t.Errorf("unexpected payload: %+v", ev)
	}
}

func TestAlertEventFromTamper(t *testing.T) {
	ev := alertEventFromTamper(TamperEvent{
		Timestamp:    "2026-01-01T00:00:00.000Z",
		Binary:       "/usr/bin/corridorwatch",
		ExpectedHash: "abc",
		ActualHash:   "def",
		Hostname:     "prod-1",
		Type:         EventType,
	})
	if ev.Subject != "/usr/bin/corridorwatch" {
		t.Errorf("subject = %s", ev.Subject)
	}
	for _, want := range []string{"abc", "def", "prod-1"} {
		if !strings.Contains(ev.Reason, want) {
			t.Errorf("reason %q missing %q", ev.Reason, want)
		}
	}
}

func TestHashSelfReturns64CharHex(t *testing.T) {
	h, err := HashSelf()
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 64 {
		t.Fatalf("expected 64 char hex, got %d: %s", len(h), h)
	}
}

func TestHashFileNonExistent(t *testing.T) {
	if _, err := hashFile("/nonexistent/path/to/binary"); err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestVerifyUsesChecksumFile(t *testing.T) {
	withHash(t, "")
	oldPaths := ChecksumPaths
	defer func() { ChecksumPaths = oldPaths }()

	checksumFile := filepath.Join(t.TempDir(), "binary.sha256")
	os.WriteFile(checksumFile, []byte(strings.Repeat("a", 64)+"\n"), 0o600)
	ChecksumPaths = []string{checksumFile}

	err := Verify(nil)
	if err == nil {
		t.Fatal("expected error for checksum file mismatch, got nil")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("expected checksum mismatch error, got %v", err)
	}
}

func TestLoadChecksumFile(t *testing.T) {
	oldPaths := ChecksumPaths
	defer func() { ChecksumPaths = oldPaths }()

	dir := t.TempDir()
	valid := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte(content), 0o600)
		return p
	}

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"valid", []string{write("ok.sha256", valid+"\n")}, valid},
		{"not hex", []string{write("bad.sha256", "not-a-valid-hash\n")}, ""},
		{"short hex", []string{write("short.sha256", "abcdef")}, ""},
		{"falls through", []string{"/nonexistent/path", write("second.sha256", valid)}, valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ChecksumPaths = tt.paths
			if got := loadChecksumFile(); got != tt.want {
				t.Errorf("loadChecksumFile() = %q, want %q", got, tt.want)
			}
		})
	}
}
