package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/corridorwatch/internal/rpc"
)

// Evaluator is the subset of the corridorwatch server the tools call.
type Evaluator interface {
	Envelope(rpc.EnvelopeRequest) rpc.EnvelopeResponse
	Action(rpc.ActionRequest) (rpc.ActionResponse, error)
	Access(rpc.AccessRequest) rpc.AccessResponse
	Corridors() rpc.ListResponse
}

// Server wraps the MCP SDK server around corridorwatch evaluations.
// Every tool is advisory: results describe, nothing is actuated.
type Server struct {
	mcpServer *mcpsdk.Server
	eval      Evaluator
}

// New creates an MCP server exposing the evaluations as tools.
func New(eval Evaluator, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{eval: eval}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "corridorwatch",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all corridorwatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "corridor_envelope",
		Description: "Evaluate interface telemetry against the safety envelope. Returns safe, caution or hard_deny with margins and a recommended action.",
	}, s.handleEnvelope)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "corridor_check_action",
		Description: "Check whether a proposed action satisfies a corridor's preconditions (eco threshold, consent, rights). Denials return an error result with the reason.",
	}, s.handleCheckAction)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "corridor_access",
		Description: "Evaluate authentication factors (knowledge, possession, biometric confidence) and the access policy.",
	}, s.handleAccess)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "corridor_list",
		Description: "List registered corridors with their advisory risk labels.",
	}, s.handleList)
}
