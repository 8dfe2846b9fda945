package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/audit"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/ledger"
)

var (
	tailLines int

	listLedger   string
	listSubject  string
	listKind     string
	listDecision string
	listLimit    int
	listCounts   bool

	replayTrace   string
	replaySubject string
	replayKind    string
	replayFrom    string
	replayTo      string
	replayFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditReplayCmd)

	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")

	auditListCmd.Flags().StringVar(&listLedger, "ledger", "", "Path to SQLite ledger (default audit.ledger from config)")
	auditListCmd.Flags().StringVar(&listSubject, "subject", "", "Filter by subject (corridor id)")
	auditListCmd.Flags().StringVar(&listKind, "kind", "", "Filter by kind (envelope|action|access|upsert)")
	auditListCmd.Flags().StringVar(&listDecision, "decision", "", "Filter by decision")
	auditListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum entries to return (0 = all)")
	auditListCmd.Flags().BoolVar(&listCounts, "counts", false, "Print decision counts instead of entries")

	auditReplayCmd.Flags().StringVar(&replayTrace, "trace", "", "Filter by trace id")
	auditReplayCmd.Flags().StringVar(&replaySubject, "subject", "", "Filter by subject")
	auditReplayCmd.Flags().StringVar(&replayKind, "kind", "", "Filter by kind")
	auditReplayCmd.Flags().StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	auditReplayCmd.Flags().StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	auditReplayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying, inspecting and querying the decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long: "Walks the JSONL audit log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.\n" +
		"Without a path, the audit log from config is used.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Query decisions from the SQLite ledger",
	Long:  "Lists ledger entries newest first, filtered by subject, kind or decision.",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Replay decisions from the audit log",
	Long: "Reads the audit log, filters by trace, subject, kind and time range,\n" +
		"and renders a decision timeline with summary.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditReplay,
}

// auditLogPath resolves the log from args, then config, then the default.
func auditLogPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	p := defaultAuditLog("", conf.Audit.Log)
	if p == "" {
		return "", errors.New("no audit log path: pass one or set audit.log in config")
	}
	return p, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditLogPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditLogPath(args)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}

	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		out, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(out))
	}

	return nil
}

func runAuditList(cmd *cobra.Command, args []string) error {
	path := listLedger
	if path == "" {
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		path = conf.Audit.Ledger
	}
	if path == "" {
		return errors.New("no ledger: pass --ledger or set audit.ledger in config")
	}

	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	var out any
	if listCounts {
		out, err = l.Counts(listKind)
	} else {
		out, err = l.Query(ledger.Filter{
			Subject:  listSubject,
			Kind:     listKind,
			Decision: listDecision,
			Limit:    listLimit,
		})
	}
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	path, err := auditLogPath(args)
	if err != nil {
		return err
	}

	filter := audit.ReplayFilter{
		TraceID: replayTrace,
		Subject: replaySubject,
		Kind:    replayKind,
	}

	if replayFrom != "" {
		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", replayFrom, err)
		}
		filter.From = from
	}

	if replayTo != "" {
		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", replayTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(path, filter)
	if err != nil {
		return err
	}

	switch replayFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(audit.FormatTimeline(result))
	}

	return nil
}
