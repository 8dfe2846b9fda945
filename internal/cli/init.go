package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/registry"
	"github.com/ppiankov/corridorwatch/internal/systemd"
)

var (
	initMode           string
	initForce          bool
	initInstallSystemd bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.corridorwatch) or system (/etc/corridorwatch)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	initCmd.Flags().BoolVar(&initInstallSystemd, "install-systemd", false, "Install corridorwatch.service running serve (requires root)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Generate default config.yaml and an example corridor seed",
	Long: `Creates the config directory with a commented config.yaml and a
corridors.yaml seed that the config points at.

User mode (default):  writes to ~/.corridorwatch/
System mode:          writes to /etc/corridorwatch/ (requires root)

With --install-systemd: installs corridorwatch.service running
"corridorwatch serve" against the generated config and records the
unit hash so doctor can detect later edits.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}

	var created []string

	seedPath := filepath.Join(configDir, "corridors.yaml")
	if wrote, err := writeIfMissing(seedPath, registry.ExampleSeedYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, seedPath)
	}

	cfgPath := filepath.Join(configDir, "config.yaml")
	content := strings.Replace(config.DefaultConfigYAML(),
		`  file: ""`, fmt.Sprintf("  file: %q", seedPath), 1)
	if wrote, err := writeIfMissing(cfgPath, content); err != nil {
		return err
	} else if wrote {
		created = append(created, cfgPath)
	}

	if initInstallSystemd {
		unit, err := installSystemd(cfgPath)
		if err != nil {
			return err
		}
		created = append(created, unit)
	}

	fmt.Println("corridorwatch init-config complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  corridorwatch doctor")
	fmt.Println()
	fmt.Println("Start the server:")
	switch {
	case initInstallSystemd:
		fmt.Println("  sudo systemctl enable --now corridorwatch")
	case initMode == "system":
		fmt.Printf("  corridorwatch serve --config %s\n", cfgPath)
	default:
		fmt.Println("  corridorwatch serve")
	}

	return nil
}

// installSystemd writes the service unit and records its hash.
func installSystemd(cfgPath string) (string, error) {
	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("--install-systemd is only supported on Linux")
	}
	if os.Geteuid() != 0 {
		return "", fmt.Errorf("--install-systemd requires root; run with sudo")
	}

	binary, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	content := systemd.ServiceUnit(binary, cfgPath, "/var/lib/corridorwatch")
	if err := os.WriteFile(systemd.UnitPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write systemd unit: %w", err)
	}
	if err := systemd.RecordUnitFileHash(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: unit hash not recorded: %v\n", err)
	}

	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: systemctl daemon-reload failed: %v\n", err)
	}
	return systemd.UnitPath, nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/corridorwatch", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".corridorwatch"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
