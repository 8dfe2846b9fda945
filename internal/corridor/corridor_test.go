package corridor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ppiankov/corridorwatch/internal/model"
)

func testEco(t *testing.T) EcoImpactMetrics {
	t.Helper()
	m, err := NewEcoImpactMetrics(0.8, 0.7, 0.9, 0.85)
	if err != nil {
		t.Fatalf("NewEcoImpactMetrics: %v", err)
	}
	return m
}

func TestNewIDTrimsAndRejectsEmpty(t *testing.T) {
	id, err := NewID("  eco:desert:phoenix  ")
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if id.String() != "eco:desert:phoenix" {
		t.Errorf("expected trimmed id, got %q", id.String())
	}

	for _, s := range []string{"", "   ", "\t\n"} {
		if _, err := NewID(s); !errors.Is(err, ErrEmptyID) {
			t.Errorf("NewID(%q): expected ErrEmptyID, got %v", s, err)
		}
	}
}

func TestNewDIDRequiresPrefix(t *testing.T) {
	if _, err := NewDID("did:example:corridor:phoenix-desert"); err != nil {
		t.Fatalf("NewDID: %v", err)
	}
	if _, err := NewDID("phoenix-desert"); !errors.Is(err, ErrNotDID) {
		t.Errorf("expected ErrNotDID, got %v", err)
	}
	if _, err := NewDID(" "); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestIDEqualityIsExact(t *testing.T) {
	if MustID("a:b") != MustID(" a:b ") {
		t.Error("expected trimmed ids to be equal")
	}
	if MustID("a:b") == MustID("A:B") {
		t.Error("expected case-sensitive ids")
	}
	m := map[ID]int{MustID("x:y"): 1}
	if m[MustID("x:y")] != 1 {
		t.Error("expected id usable as map key")
	}
}

func TestIDJSONRejectsEmpty(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`"  "`), &id); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestAggregateIsMean(t *testing.T) {
	agg := testEco(t).Aggregate().Value()
	if math.Abs(float64(agg)-0.8125) > 1e-6 {
		t.Errorf("expected 0.8125, got %v", agg)
	}
}

func TestAggregateStaysInRange(t *testing.T) {
	for _, v := range []float32{0, 0.1, 0.5, 0.999, 1} {
		m, err := NewEcoImpactMetrics(v, v, v, v)
		if err != nil {
			t.Fatal(err)
		}
		agg := m.Aggregate().Value()
		if agg < 0 || agg > 1 {
			t.Errorf("aggregate %v escaped [0,1]", agg)
		}
	}
}

func TestNewEcoImpactMetricsRejectsOutOfRange(t *testing.T) {
	_, err := NewEcoImpactMetrics(0.8, 1.2, 0.9, 0.85)
	if !errors.Is(err, model.ErrScoreOutOfRange) {
		t.Fatalf("expected ErrScoreOutOfRange, got %v", err)
	}
}

func TestEffectivelyGranted(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		vc   VerifiableConsent
		want bool
	}{
		{"granted", VerifiableConsent{Status: ConsentGranted}, true},
		{"granted but revoked", VerifiableConsent{Status: ConsentGranted, RevokedAt: &now}, false},
		{"pending", VerifiableConsent{Status: ConsentPending}, false},
		{"revoked", VerifiableConsent{Status: ConsentRevoked}, false},
		{"withheld", VerifiableConsent{Status: ConsentWithheld}, false},
	}
	for _, tc := range cases {
		if got := tc.vc.EffectivelyGranted(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestAdvisoryRiskLabel(t *testing.T) {
	now := time.Now()
	high := testEco(t)
	mid, _ := NewEcoImpactMetrics(0.6, 0.6, 0.6, 0.6)
	low, _ := NewEcoImpactMetrics(0.2, 0.2, 0.2, 0.2)

	cases := []struct {
		fpic FPICStatus
		eco  EcoImpactMetrics
		want string
	}{
		{FPICWithheld(now, "council vote"), high, RiskBlockedFPICWithheld},
		{FPICPending(), high, RiskHoldFPICPending},
		{FPICGranted(now, []string{"nation-x"}, "ledger:1"), high, RiskLowObservational},
		{FPICGranted(now, nil, ""), mid, RiskMediumReview},
		{FPICGranted(now, nil, ""), low, RiskHighReview},
	}
	for _, tc := range cases {
		c := Corridor{ID: MustID("eco:test"), Eco: tc.eco, FPIC: tc.fpic}
		if got := c.AdvisoryRiskLabel(); got != tc.want {
			t.Errorf("fpic=%s: expected %s, got %s", tc.fpic.Status, tc.want, got)
		}
	}
}

func TestCorridorValidate(t *testing.T) {
	if err := (Corridor{}).Validate(); !errors.Is(err, ErrInvalidCorridor) {
		t.Errorf("expected ErrInvalidCorridor for zero id, got %v", err)
	}
	c := Corridor{ID: MustID("eco:x"), FPIC: FPICStatus{Status: "maybe"}}
	if err := c.Validate(); !errors.Is(err, ErrInvalidCorridor) {
		t.Errorf("expected ErrInvalidCorridor for unknown status, got %v", err)
	}
	c.FPIC = FPICPending()
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCorridorJSONRoundTripKeepsConsent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Corridor{
		ID:     MustID("did:example:corridor:phoenix-desert"),
		Kind:   KindDesert,
		Eco:    testEco(t),
		FPIC:   FPICGranted(now, []string{"council"}, "ledger:42"),
		Rights: StrictFloor(),
		Consent: &VerifiableConsent{
			IssuerDID:         "did:example:tribal-council:xyz",
			SubjectCorridorID: "did:example:corridor:phoenix-desert",
			Status:            ConsentGranted,
			IssuedAt:          now,
			Signature:         "deadbeef",
		},
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back Corridor
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != c.ID || back.Consent == nil || !back.Consent.EffectivelyGranted() {
		t.Errorf("round trip lost data: %+v", back)
	}
	if back.Eco.Aggregate() != c.Eco.Aggregate() {
		t.Errorf("eco changed: %v vs %v", back.Eco.Aggregate(), c.Eco.Aggregate())
	}
}

func TestNewActionRequestValidatesScore(t *testing.T) {
	id := MustID("eco:x")
	if _, err := NewActionRequest(id, 0.6, true, false, false, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range []float32{-0.1, 1.1, float32(math.NaN())} {
		if _, err := NewActionRequest(id, v, false, false, false, false); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("min=%v: expected ErrInvalidRequest, got %v", v, err)
		}
	}
	if _, err := NewActionRequest(ID{}, 0.5, false, false, false, false); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for zero id, got %v", err)
	}
}

func TestKindIsCustom(t *testing.T) {
	if KindRiver.IsCustom() {
		t.Error("river is built-in")
	}
	if !Kind("sacred_grove").IsCustom() {
		t.Error("sacred_grove should be custom")
	}
}
