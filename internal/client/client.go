package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/guard"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/rpc"
)

// KindUnreachable is the denial kind reported when the server cannot be reached.
const KindUnreachable gate.Kind = "server_unreachable"

// DefaultTimeout bounds every call.
const DefaultTimeout = 5 * time.Second

// Client connects to a corridorwatch gRPC server.
type Client struct {
	conn    *grpc.ClientConn
	client  rpc.CorridorwatchClient
	timeout time.Duration
}

// New creates a gRPC client connected to the given address.
// Fail-closed: if the server cannot be reached, evaluations return deny.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to corridorwatch server: %w", err)
	}
	return &Client{
		conn:    conn,
		client:  rpc.NewCorridorwatchClient(conn),
		timeout: DefaultTimeout,
	}, nil
}

func (c *Client) invoke(fn func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error), req, resp any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	in, err := rpc.ToStruct(req)
	if err != nil {
		return err
	}
	out, err := fn(ctx, in)
	if err != nil {
		return err
	}
	return rpc.FromStruct(out, resp)
}

// Envelope evaluates telemetry remotely.
// Fail-closed: any RPC error yields a hard_deny recommendation.
func (c *Client) Envelope(t model.InterfaceTelemetry) rpc.EnvelopeResponse {
	var resp rpc.EnvelopeResponse
	if err := c.invoke(c.client.EvaluateEnvelope, rpc.EnvelopeRequest{Telemetry: t}, &resp); err != nil {
		resp = rpc.EnvelopeResponse{Decision: model.Deny}
		resp.Recommendation.Evaluation.Status = model.StatusHardDeny
		resp.Recommendation.Message = fmt.Sprintf("corridorwatch server unreachable: %v", err)
		_, resp.Recommendation.RecommendedAction = guard.Template(model.StatusHardDeny)
	}
	return resp
}

// CheckAction asks the server's gate about an action.
// Fail-closed: any RPC error yields a denial.
func (c *Client) CheckAction(req corridor.ActionRequest) rpc.ActionResponse {
	var resp rpc.ActionResponse
	if err := c.invoke(c.client.CheckAction, rpc.ActionRequest{Request: req}, &resp); err != nil {
		return rpc.ActionResponse{
			Allowed: false,
			Denial:  gate.Deny(KindUnreachable, fmt.Sprintf("corridorwatch server unreachable: %v", err)),
		}
	}
	return resp
}

// Access evaluates authentication factors remotely.
// Fail-closed: any RPC error yields deny.
func (c *Client) Access(ctx auth.Context) rpc.AccessResponse {
	var resp rpc.AccessResponse
	if err := c.invoke(c.client.EvaluateAccess, rpc.AccessRequest{Context: ctx}, &resp); err != nil {
		return rpc.AccessResponse{
			Evaluation: auth.Evaluation{
				Decision:    auth.Deny,
				Explanation: fmt.Sprintf("corridorwatch server unreachable: %v", err),
			},
			Verdict: auth.Verdict{Allowed: false, Reasons: []string{"server unreachable"}},
		}
	}
	return resp
}

// Upsert stores a corridor on the server.
func (c *Client) Upsert(cor corridor.Corridor) (rpc.CorridorRecord, error) {
	var rec rpc.CorridorRecord
	err := c.invoke(c.client.UpsertCorridor, rpc.UpsertRequest{Corridor: cor}, &rec)
	return rec, err
}

// Get fetches one corridor.
func (c *Client) Get(id string) (rpc.CorridorRecord, error) {
	var rec rpc.CorridorRecord
	err := c.invoke(c.client.GetCorridor, rpc.CorridorRequest{ID: id}, &rec)
	return rec, err
}

// List fetches every corridor.
func (c *Client) List() ([]rpc.CorridorRecord, error) {
	var resp rpc.ListResponse
	if err := c.invoke(c.client.ListCorridors, rpc.ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Corridors, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
