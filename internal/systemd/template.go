// Package systemd renders and checks the corridorwatch service unit.
package systemd

import "fmt"

// UnitPath is where init-config installs the service unit.
const UnitPath = "/etc/systemd/system/corridorwatch.service"

// ServiceUnit returns the unit for corridorwatch serve reading configPath.
// The evaluator needs no writable paths beyond its state directory.
func ServiceUnit(binary, configPath, stateDir string) string {
	return fmt.Sprintf(`[Unit]
Description=corridorwatch governance kernel
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s serve --config %s
Restart=on-failure
RestartSec=2
DynamicUser=true
StateDirectory=corridorwatch
Environment=HOME=%s
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=true
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, binary, configPath, stateDir, stateDir)
}
