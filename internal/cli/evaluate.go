package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/client"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/rpc"
	"github.com/ppiankov/corridorwatch/internal/server"
)

var (
	evalRemote   string
	evalFile     string
	evalFormat   string
	evalAuditLog string

	envMech, envCoherence, envEM, envThermal, envInflammation, envSpike float32

	actCorridor      string
	actMinEco        float32
	actHighImpact    bool
	actFearPain      bool
	actInferMental   bool
	actBeliefShaping bool

	mfaKnowledge  bool
	mfaPossession bool
	mfaBioID      string
	mfaBioHash    string
	mfaBioConf    float32
)

func init() {
	for _, c := range []*cobra.Command{envelopeCmd, actionCmd, mfaCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&evalRemote, "remote", "", "Evaluate on a running server (host:port) instead of in-process")
		c.Flags().StringVar(&evalFile, "file", "", "Read the request from a YAML or JSON file (- for stdin)")
		c.Flags().StringVarP(&evalFormat, "format", "f", "text", "Output format (text|json)")
		c.Flags().StringVar(&evalAuditLog, "audit-log", "", "Record the decision to this audit log (in-process only)")
	}

	envelopeCmd.Flags().Float32Var(&envMech, "mech-density", 0, "Mechanical density")
	envelopeCmd.Flags().Float32Var(&envCoherence, "coherence", 1, "Interface coherence")
	envelopeCmd.Flags().Float32Var(&envEM, "em-field", 0, "EM field intensity")
	envelopeCmd.Flags().Float32Var(&envThermal, "thermal", 0, "Thermal load")
	envelopeCmd.Flags().Float32Var(&envInflammation, "inflammation", 0, "Inflammation index")
	envelopeCmd.Flags().Float32Var(&envSpike, "spike-energy", 0, "Spike energy")

	actionCmd.Flags().StringVar(&actCorridor, "corridor", "", "Corridor id")
	actionCmd.Flags().Float32Var(&actMinEco, "min-eco", 0, "Required minimum eco score [0.0, 1.0]")
	actionCmd.Flags().BoolVar(&actHighImpact, "high-impact", false, "Action is high impact")
	actionCmd.Flags().BoolVar(&actFearPain, "fear-pain", false, "Action may use fear or pain channels")
	actionCmd.Flags().BoolVar(&actInferMental, "infer-mental", false, "Action may infer mental state")
	actionCmd.Flags().BoolVar(&actBeliefShaping, "belief-shaping", false, "Action may attempt belief shaping")

	mfaCmd.Flags().BoolVar(&mfaKnowledge, "knowledge", false, "Knowledge factor present")
	mfaCmd.Flags().BoolVar(&mfaPossession, "possession", false, "Possession factor present")
	mfaCmd.Flags().StringVar(&mfaBioID, "biometric-id", "", "Biometric-like factor id (omit for none)")
	mfaCmd.Flags().StringVar(&mfaBioHash, "biometric-hash", "", "Biometric-like factor hash reference")
	mfaCmd.Flags().Float32Var(&mfaBioConf, "biometric-confidence", 0, "Biometric-like factor confidence")
}

var envelopeCmd = &cobra.Command{
	Use:   "envelope",
	Short: "Evaluate one telemetry sample against the safety envelope",
	Long: "Computes per-dimension margins, the composite margin, status and\n" +
		"salience, and prints the advisory recommendation.\n" +
		"Exits 77 on hard_deny.",
	Args: cobra.NoArgs,
	RunE: runEnvelope,
}

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Check a proposed action against corridor preconditions",
	Long: "Runs the action gate: corridor registration, FPIC and verifiable\n" +
		"consent, neurorights floors, and the eco threshold.\n" +
		"Exits 77 when the action is denied.",
	Args: cobra.NoArgs,
	RunE: runAction,
}

var mfaCmd = &cobra.Command{
	Use:   "mfa",
	Short: "Evaluate multi-factor access under the access policy",
	Long:  "Applies the three-factor decision table and folds in the access policy.\nExits 77 when access is blocked.",
	Args:  cobra.NoArgs,
	RunE:  runMFA,
}

// evaluator is the subset of the server both the local and remote paths serve.
type evaluator struct {
	local  *server.Server
	remote *client.Client
}

func openEvaluator() (*evaluator, error) {
	if evalRemote != "" {
		c, err := client.New(evalRemote)
		if err != nil {
			return nil, err
		}
		return &evaluator{remote: c}, nil
	}
	srv, err := openLocal(evalAuditLog)
	if err != nil {
		return nil, err
	}
	return &evaluator{local: srv}, nil
}

func (e *evaluator) Close() error {
	if e.remote != nil {
		return e.remote.Close()
	}
	return e.local.Close()
}

func runEnvelope(cmd *cobra.Command, args []string) error {
	t := model.InterfaceTelemetry{
		MechDensity:        model.MechDensity(envMech),
		InterfaceCoherence: model.InterfaceCoherence(envCoherence),
		EmField:            model.EmFieldIntensity(envEM),
		ThermalLoad:        model.ThermalLoad(envThermal),
		Inflammation:       model.InflammationIndex(envInflammation),
		SpikeEnergy:        model.SpikeEnergy(envSpike),
	}
	if evalFile != "" {
		if err := readInput(evalFile, &t); err != nil {
			return err
		}
	}

	ev, err := openEvaluator()
	if err != nil {
		return err
	}
	defer ev.Close()

	var resp rpc.EnvelopeResponse
	if ev.remote != nil {
		resp = ev.remote.Envelope(t)
	} else {
		resp = ev.local.Envelope(rpc.EnvelopeRequest{Telemetry: t})
	}

	if evalFormat == "json" {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else {
		fmt.Print(formatEnvelope(resp))
	}
	if resp.Recommendation.Evaluation.Status == model.StatusHardDeny {
		ev.Close()
		os.Exit(exitDenied)
	}
	return nil
}

func runAction(cmd *cobra.Command, args []string) error {
	var req corridor.ActionRequest
	if evalFile != "" {
		if err := readInput(evalFile, &req); err != nil {
			return err
		}
	} else {
		id, err := corridor.NewID(actCorridor)
		if err != nil {
			return err
		}
		req = corridor.ActionRequest{
			CorridorID:              id,
			RequiredMinEcoScore:     actMinEco,
			HighImpact:              actHighImpact,
			MayUseFearPainChannels:  actFearPain,
			MayInferMentalState:     actInferMental,
			MayAttemptBeliefShaping: actBeliefShaping,
		}
	}

	ev, err := openEvaluator()
	if err != nil {
		return err
	}
	defer ev.Close()

	var resp rpc.ActionResponse
	if ev.remote != nil {
		resp = ev.remote.CheckAction(req)
	} else {
		resp, err = ev.local.Action(rpc.ActionRequest{Request: req})
		if err != nil {
			return err
		}
	}

	if evalFormat == "json" {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else {
		fmt.Print(formatAction(req, resp))
	}
	if !resp.Allowed {
		ev.Close()
		os.Exit(exitDenied)
	}
	return nil
}

func runMFA(cmd *cobra.Command, args []string) error {
	var req rpc.AccessRequest
	if evalFile != "" {
		if err := readInput(evalFile, &req); err != nil {
			return err
		}
	} else {
		req.Context = auth.Context{Knowledge: mfaKnowledge, Possession: mfaPossession}
		if mfaBioID != "" {
			req.Context.Biometric = &auth.BiometricFactor{
				ID:            mfaBioID,
				HashReference: mfaBioHash,
				Confidence:    mfaBioConf,
			}
		}
	}

	ev, err := openEvaluator()
	if err != nil {
		return err
	}
	defer ev.Close()

	var resp rpc.AccessResponse
	if ev.remote != nil {
		resp = ev.remote.Access(req.Context)
	} else {
		resp = ev.local.Access(req)
	}

	if evalFormat == "json" {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else {
		fmt.Print(formatAccess(resp))
	}
	if !resp.Verdict.Allowed {
		ev.Close()
		os.Exit(exitDenied)
	}
	return nil
}

func formatEnvelope(resp rpc.EnvelopeResponse) string {
	ev := resp.Recommendation.Evaluation
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)  composite=%.3f  salience=%.3f  weakest=%s\n",
		strings.ToUpper(string(ev.Status)), resp.Decision, ev.CompositeMargin, ev.Salience, ev.Weakest)
	fmt.Fprintf(&b, "  %s\n", resp.Recommendation.Message)
	fmt.Fprintf(&b, "  -> %s\n", resp.Recommendation.RecommendedAction)
	return b.String()
}

func formatAction(req corridor.ActionRequest, resp rpc.ActionResponse) string {
	var b strings.Builder
	if resp.Allowed {
		fmt.Fprintf(&b, "ALLOW  %s", req.CorridorID)
	} else {
		fmt.Fprintf(&b, "DENY   %s  [%s] %s", req.CorridorID, resp.Denial.Kind, resp.Denial.Reason)
	}
	if resp.RiskLabel != "" {
		fmt.Fprintf(&b, "\n  risk: %s", resp.RiskLabel)
	}
	b.WriteString("\n")
	return b.String()
}

func formatAccess(resp rpc.AccessResponse) string {
	var b strings.Builder
	verdict := "ALLOWED"
	if !resp.Verdict.Allowed {
		verdict = "BLOCKED"
	}
	fmt.Fprintf(&b, "%s  mfa=%s\n  %s\n", verdict, resp.Evaluation.Decision, resp.Evaluation.Explanation)
	for _, r := range resp.Verdict.Reasons {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	return b.String()
}
