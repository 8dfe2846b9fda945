// Package integrity verifies the binary checksum at startup.
// The expected hash is embedded at build time via ldflags.
// If the running binary does not match, a tamper event is
// recorded and the process refuses to start.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/corridorwatch/internal/alert"
	"github.com/ppiankov/corridorwatch/internal/config"
)

// EventType is the alert type and audit tag for a checksum mismatch.
const EventType = "binary_tamper"

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/ppiankov/corridorwatch/internal/integrity.ExpectedHash=<sha256hex>"
//
// When empty (dev builds), verification falls back to checksum file.
var ExpectedHash string

// TamperLogDir is where tamper.jsonl is written. Empty means ~/.corridorwatch.
// Override for testing.
var TamperLogDir string

// ChecksumPaths are the paths checked (in order) for a sha256 checksum file.
// The file should contain a single hex-encoded SHA-256 hash.
// Override for testing.
var ChecksumPaths = []string{
	"/etc/corridorwatch/binary.sha256",
	"$HOME/.corridorwatch/binary.sha256",
}

// TamperEvent records a binary integrity violation.
type TamperEvent struct {
	Timestamp    string `json:"timestamp"`
	Binary       string `json:"binary"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
}

// Verify checks that the running binary matches ExpectedHash, falling back
// to the checksum file at ChecksumPaths. Returns nil when verification
// passes or no expected hash is available (dev mode). On mismatch it
// writes a tamper event and sends it to the webhooks loadAlerts returns.
// loadAlerts is only called on mismatch and may be nil.
func Verify(loadAlerts func() []alert.AlertConfig) error {
	expected := ExpectedHash
	if expected == "" {
		expected = loadChecksumFile()
	}
	if expected == "" {
		fmt.Fprintf(os.Stderr, "integrity: WARNING no build-time hash or checksum file found (dev build, integrity check skipped)\n")
		return nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}

	actual, err := hashFile(exePath)
	if err != nil {
		return fmt.Errorf("integrity: cannot hash binary: %w", err)
	}

	if strings.EqualFold(actual, expected) {
		fmt.Fprintf(os.Stderr, "integrity: binary checksum verified (%s...%s)\n",
			actual[:8], actual[len(actual)-8:])
		return nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Binary:       exePath,
		ExpectedHash: expected,
		ActualHash:   actual,
		Type:         EventType,
	}
	event.Hostname, _ = os.Hostname()

	var alerts []alert.AlertConfig
	if loadAlerts != nil {
		alerts = loadAlerts()
	}
	writeTamperEvent(event, alerts)

	return fmt.Errorf("integrity: binary checksum mismatch (expected %s, got %s)", expected, actual)
}

// HashSelf returns the SHA-256 hex digest of the running binary.
// Useful for writing the checksum file after install.
func HashSelf() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	return hashFile(exePath)
}

// loadChecksumFile reads the expected hash from the first readable checksum
// file holding a SHA-256 hex digest. Returns "" when none qualifies.
func loadChecksumFile() string {
	for _, p := range ChecksumPaths {
		data, err := os.ReadFile(os.ExpandEnv(p))
		if err != nil {
			continue
		}
		hash := strings.TrimSpace(string(data))
		if raw, err := hex.DecodeString(hash); err == nil && len(raw) == sha256.Size {
			return hash
		}
	}
	return ""
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func tamperDir() string {
	if TamperLogDir != "" {
		return TamperLogDir
	}
	return config.DefaultDir()
}

// writeTamperEvent appends the event to tamper.jsonl, prints it to stderr
// and sends it to every webhook subscribed to binary_tamper or deny.
func writeTamperEvent(event TamperEvent, alerts []alert.AlertConfig) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	if dir := tamperDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err == nil {
			logPath := filepath.Join(dir, "tamper.jsonl")
			if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
				f.Write(append(line, '\n'))
				f.Sync()
				f.Close()
			}
		}
	}

	fmt.Fprintf(os.Stderr, "TAMPER ALERT: %s\n", string(line))

	ev := alertEventFromTamper(event)
	for _, cfg := range alerts {
		for _, e := range cfg.Events {
			if e == EventType || e == ev.Decision {
				// Synchronous: the process exits right after.
				if err := alert.Send(cfg, ev); err != nil {
					fmt.Fprintf(os.Stderr, "TAMPER ALERT webhook failed: %v\n", err)
				}
				break
			}
		}
	}
}

func alertEventFromTamper(event TamperEvent) alert.AlertEvent {
	return alert.AlertEvent{
		Timestamp: event.Timestamp,
		Kind:      "integrity",
		Subject:   event.Binary,
		Decision:  "deny",
		Type:      EventType,
		Reason: fmt.Sprintf("binary checksum mismatch on %s: expected %s, got %s",
			event.Hostname, event.ExpectedHash, event.ActualHash),
	}
}
