package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/audit"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/integrity"
	"github.com/ppiankov/corridorwatch/internal/registry"
	"github.com/ppiankov/corridorwatch/internal/systemd"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, registry and audit log health",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := doctorChecks(configPath)

	hasFailures := false
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

func doctorChecks(path string) []checkResult {
	var checks []checkResult

	if execPath, _ := os.Executable(); execPath != "" {
		checks = append(checks, checkResult{label: "corridorwatch binary", ok: true, detail: fmt.Sprintf("%s (v%s)", execPath, version)})
	} else {
		checks = append(checks, checkResult{label: "corridorwatch binary", ok: false, detail: "cannot determine executable path"})
	}

	if h, err := integrity.HashSelf(); err == nil {
		checks = append(checks, checkResult{label: "binary sha256", ok: true, detail: h})
	} else {
		checks = append(checks, checkResult{label: "binary sha256", ok: false, detail: err.Error()})
	}

	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		checks = append(checks, checkResult{label: "config", ok: false, detail: "missing, using defaults", fix: "corridorwatch init-config"})
	}
	conf, id, err := config.LoadConfigWithHash(path)
	if err != nil {
		// Nothing below can be checked without a config.
		return append(checks, checkResult{label: "config", ok: false, detail: err.Error()})
	}
	checks = append(checks, checkResult{label: "config", ok: true, detail: id})

	if conf.Registry.File != "" {
		if cs, err := registry.LoadFile(conf.Registry.File); err != nil {
			checks = append(checks, checkResult{label: "registry seed", ok: false, detail: err.Error()})
		} else {
			checks = append(checks, checkResult{label: "registry seed", ok: true, detail: fmt.Sprintf("%d corridor(s)", len(cs))})
		}
	} else if conf.Registry.Database == "" {
		checks = append(checks, checkResult{label: "registry", ok: false, detail: "no seed file or database configured", fix: "set registry.file in config"})
	}

	if conf.Registry.Database != "" {
		db, err := registry.OpenSQLite(conf.Registry.Database, registry.RequireDID(conf.Registry.RequireDID))
		if err != nil {
			checks = append(checks, checkResult{label: "registry database", ok: false, detail: err.Error()})
		} else {
			checks = append(checks, checkResult{label: "registry database", ok: true, detail: fmt.Sprintf("%d corridor(s)", len(db.List()))})
			db.Close()
		}
	}

	logPath := defaultAuditLog("", conf.Audit.Log)
	if _, err := os.Stat(logPath); err == nil {
		r := audit.Verify(logPath)
		if r.Valid {
			checks = append(checks, checkResult{label: "audit log", ok: true, detail: fmt.Sprintf("%d entries verified", r.Lines)})
		} else {
			checks = append(checks, checkResult{label: "audit log", ok: false, detail: fmt.Sprintf("chain broken at line %d: %s", r.ErrorLine, r.Error)})
		}
	} else {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: "not created yet"})
	}

	if runtime.GOOS == "linux" && systemd.Installed() {
		if msg := systemd.CheckUnitFileIntegrity(); msg != "" {
			checks = append(checks, checkResult{label: "systemd unit", ok: false, detail: msg, fix: "sudo corridorwatch init-config --mode system --install-systemd --force"})
		} else {
			checks = append(checks, checkResult{label: "systemd unit", ok: true, detail: "installed"})
		}
	}

	keys := len(conf.Consent.TrustedKeys)
	checks = append(checks, checkResult{label: "consent keys", ok: true, detail: fmt.Sprintf("%d trusted issuer(s)", keys)})

	return checks
}
