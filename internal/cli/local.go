package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/corridorwatch/internal/server"
)

// exitDenied is the exit code for hard_deny, denied actions and blocked access.
const exitDenied = 77

// openLocal builds an in-process evaluator from --config. Nothing listens.
func openLocal(auditLog string) (*server.Server, error) {
	srv, err := server.New(server.Config{ConfigPath: configPath, AuditLogPath: auditLog})
	if err != nil {
		return nil, fmt.Errorf("failed to load corridorwatch: %w", err)
	}
	return srv, nil
}

// readInput decodes a YAML or JSON file into v through its JSON tags.
// "-" reads stdin.
func readInput(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
