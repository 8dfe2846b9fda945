package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/httpapi"
	"github.com/ppiankov/corridorwatch/internal/metrics"
	"github.com/ppiankov/corridorwatch/internal/server"
)

var (
	servePort     int
	serveHTTPPort int
	serveAuditLog string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 50051, "gRPC listen port")
	serveCmd.Flags().IntVar(&serveHTTPPort, "http-port", 8080, "HTTP listen port for JSON and /metrics (0 disables)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file (default audit.log from config, else ~/.corridorwatch/audit.jsonl)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC and HTTP evaluation server",
	Long: "Runs corridorwatch as a central evaluation server over gRPC, with an\n" +
		"optional JSON/HTTP facade and Prometheus metrics.\n" +
		"Supports hot-reload of the config and registry seed files.",
	RunE: runServe,
}

// defaultAuditLog applies the audit log fallback chain.
func defaultAuditLog(flag, fromConfig string) string {
	if flag != "" {
		return flag
	}
	if fromConfig != "" {
		return fromConfig
	}
	if dir := config.DefaultDir(); dir != "" {
		return filepath.Join(dir, "audit.jsonl")
	}
	return ""
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	auditLog := defaultAuditLog(serveAuditLog, conf.Audit.Log)
	if auditLog != "" {
		if err := os.MkdirAll(filepath.Dir(auditLog), 0o755); err != nil {
			return fmt.Errorf("create audit log directory: %w", err)
		}
	}

	sink := metrics.NewPrometheus()
	srv, err := server.New(server.Config{
		Port:         servePort,
		ConfigPath:   configPath,
		AuditLogPath: auditLog,
		Metrics:      sink,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	reloader, err := server.NewReloader(srv, srv.WatchPaths())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if reloader != nil {
		go reloader.Run(ctx)
	}

	if serveHTTPPort > 0 {
		web := httpapi.NewServer(srv, httpapi.Config{
			Port:       serveHTTPPort,
			Metrics:    sink.Handler(),
			RateLimits: conf.HTTP.RateLimits,
		})
		go func() {
			if err := web.Start(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "http server: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "corridorwatch HTTP listening on :%d\n", serveHTTPPort)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down corridorwatch server...")
		cancel()
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "corridorwatch gRPC listening on :%d\n", servePort)
	fmt.Fprintf(os.Stderr, "Config: %s\n", srv.ConfigID())
	if auditLog != "" {
		fmt.Fprintf(os.Stderr, "Audit log: %s\n", auditLog)
	}
	if reloader != nil && len(reloader.Paths()) > 0 {
		fmt.Fprintf(os.Stderr, "Watching: %v\n", reloader.Paths())
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
