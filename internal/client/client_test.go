package client

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/server"
)

// startTestServer creates a server + returns its address.
func startTestServer(t *testing.T) (string, func()) {
	t.Helper()

	srv, err := server.New(server.Config{ConfigPath: filepath.Join(t.TempDir(), "config.yaml")})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.ServeOn(lis)

	cleanup := func() {
		srv.GracefulStop()
		srv.Close()
	}
	return lis.Addr().String(), cleanup
}

func testCorridor(t *testing.T) corridor.Corridor {
	t.Helper()
	eco, err := corridor.NewEcoImpactMetrics(0.9, 0.8, 0.7, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	return corridor.Corridor{
		ID:     corridor.MustID("eco:river:a"),
		Kind:   corridor.KindRiver,
		Eco:    eco,
		FPIC:   corridor.FPICPending(),
		Rights: corridor.StrictFloor(),
	}
}

func TestClientEnvelope(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	c, err := New(addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	resp := c.Envelope(model.InterfaceTelemetry{InterfaceCoherence: 0.9})
	if resp.Decision != model.Allow {
		t.Errorf("decision = %s, want allow: %s", resp.Decision, resp.Recommendation.Message)
	}
}

func TestClientCorridorRoundTrip(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	c, err := New(addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if _, err := c.Upsert(testCorridor(t)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec, err := c.Get("eco:river:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Corridor.Kind != corridor.KindRiver {
		t.Errorf("kind = %s, want river", rec.Corridor.Kind)
	}
	list, err := c.List()
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %v", list, err)
	}

	req := corridor.ActionRequest{CorridorID: corridor.MustID("eco:river:a"), RequiredMinEcoScore: 0.5, MayUseFearPainChannels: true}
	resp := c.CheckAction(req)
	if resp.Allowed || resp.Denial == nil || resp.Denial.Kind != gate.KindRightsCoercion {
		t.Errorf("expected rights_coercion, got %+v", resp)
	}
}

func TestClientFailClosed(t *testing.T) {
	// Reserve a port then close it so nothing is listening.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	c, err := New(addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	env := c.Envelope(model.InterfaceTelemetry{InterfaceCoherence: 0.9})
	if env.Decision != model.Deny || env.Recommendation.Evaluation.Status != model.StatusHardDeny {
		t.Errorf("expected fail-closed hard_deny, got %+v", env)
	}

	act := c.CheckAction(corridor.ActionRequest{CorridorID: corridor.MustID("eco:a")})
	if act.Allowed || act.Denial == nil || act.Denial.Kind != KindUnreachable {
		t.Errorf("expected server_unreachable denial, got %+v", act)
	}

	acc := c.Access(auth.Context{Knowledge: true, Possession: true})
	if acc.Evaluation.Decision != auth.Deny || acc.Verdict.Allowed {
		t.Errorf("expected fail-closed deny, got %+v", acc)
	}

	if _, err := c.List(); err == nil {
		t.Error("expected List error when unreachable")
	}
}
