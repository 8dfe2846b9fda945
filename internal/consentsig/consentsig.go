// Package consentsig verifies the signature carried by a consent credential
// against trusted issuer keys. It runs after the gate allows a high-impact
// action, as a separate step; the gate itself only reads consent status.
package consentsig

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
)

var (
	ErrUntrustedIssuer = errors.New("consent issuer is not trusted")
	ErrMalformed       = errors.New("malformed consent signature")
	ErrBadSignature    = errors.New("consent signature does not verify")
	ErrSubjectMismatch = errors.New("consent subject is not this corridor")
)

// Supported algorithms.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"

	HashSHA256  = "sha256"
	HashSHA3256 = "sha3-256"
)

// TrustedKey binds an issuer DID to a public key. PublicKey is encoded as
// "<alg>:<base64>".
type TrustedKey struct {
	IssuerDID string `yaml:"issuer_did" json:"issuer_did"`
	PublicKey string `yaml:"public_key" json:"public_key"`
	HashAlg   string `yaml:"hash_alg,omitempty" json:"hash_alg,omitempty"`
}

type parsedKey struct {
	alg     string
	hashAlg string
	ed      ed25519.PublicKey
	dil     *mode3.PublicKey
}

// Verifier checks consent signatures.
type Verifier struct {
	keys map[string]parsedKey
}

// NewVerifier parses the trusted keys.
func NewVerifier(keys []TrustedKey) (*Verifier, error) {
	v := &Verifier{keys: make(map[string]parsedKey, len(keys))}
	for _, k := range keys {
		pk, err := parseKey(k)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", k.IssuerDID, err)
		}
		v.keys[k.IssuerDID] = pk
	}
	return v, nil
}

func parseKey(k TrustedKey) (parsedKey, error) {
	if k.IssuerDID == "" {
		return parsedKey{}, fmt.Errorf("%w: missing issuer_did", ErrMalformed)
	}
	alg, enc, ok := strings.Cut(k.PublicKey, ":")
	if !ok {
		return parsedKey{}, fmt.Errorf("%w: public key must be <alg>:<base64>", ErrMalformed)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return parsedKey{}, fmt.Errorf("%w: public key base64: %v", ErrMalformed, err)
	}

	pk := parsedKey{alg: alg, hashAlg: k.HashAlg}
	if pk.hashAlg == "" {
		pk.hashAlg = HashSHA256
	}
	if _, err := digestFor(pk.hashAlg, nil); err != nil {
		return parsedKey{}, err
	}

	switch alg {
	case AlgEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return parsedKey{}, fmt.Errorf("%w: invalid ed25519 public key length", ErrMalformed)
		}
		pk.ed = ed25519.PublicKey(raw)
	case AlgDilithium3:
		var dk mode3.PublicKey
		if err := dk.UnmarshalBinary(raw); err != nil {
			return parsedKey{}, fmt.Errorf("%w: invalid dilithium3 public key: %v", ErrMalformed, err)
		}
		pk.dil = &dk
	default:
		return parsedKey{}, fmt.Errorf("%w: unsupported key algorithm %q", ErrMalformed, alg)
	}
	return pk, nil
}

// Len returns the number of trusted issuers.
func (v *Verifier) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// CheckAction runs the precondition gate on c and, when it passes, verifies
// the consent credential of a high-impact request. Without trusted keys the
// signature step is skipped. A nil Verifier has no keys.
func (v *Verifier) CheckAction(c corridor.Corridor, req corridor.ActionRequest) error {
	if err := gate.CheckPreconditions(c, req); err != nil {
		return err
	}
	if !req.HighImpact || c.Consent == nil || v.Len() == 0 {
		return nil
	}
	if err := v.VerifyFor(c.ID, *c.Consent); err != nil {
		return gate.Deny(gate.KindConsentUnverified, fmt.Sprintf("consent signature rejected: %v", err))
	}
	return nil
}

// VerifyFor checks that vc names id as its subject and then verifies the
// signature. A valid credential for another corridor is rejected.
func (v *Verifier) VerifyFor(id corridor.ID, vc corridor.VerifiableConsent) error {
	if vc.SubjectCorridorID != id.String() {
		return fmt.Errorf("%w: credential names %q, attached to %q", ErrSubjectMismatch, vc.SubjectCorridorID, id)
	}
	return v.Verify(vc)
}

// Verify checks vc.Signature against the issuer's trusted key.
func (v *Verifier) Verify(vc corridor.VerifiableConsent) error {
	pk, ok := v.keys[vc.IssuerDID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUntrustedIssuer, vc.IssuerDID)
	}

	alg, enc, ok := strings.Cut(vc.Signature, ":")
	if !ok {
		return fmt.Errorf("%w: signature must be <alg>:<base64>", ErrMalformed)
	}
	if alg != pk.alg {
		return fmt.Errorf("%w: signature alg %q does not match issuer key alg %q", ErrMalformed, alg, pk.alg)
	}
	sig, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return fmt.Errorf("%w: signature base64: %v", ErrMalformed, err)
	}

	digest, err := digestFor(pk.hashAlg, Payload(vc))
	if err != nil {
		return err
	}

	switch alg {
	case AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return fmt.Errorf("%w: invalid ed25519 signature length", ErrMalformed)
		}
		if !ed25519.Verify(pk.ed, digest, sig) {
			return ErrBadSignature
		}
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return fmt.Errorf("%w: invalid dilithium3 signature length", ErrMalformed)
		}
		if !mode3.Verify(pk.dil, digest, sig) {
			return ErrBadSignature
		}
	}
	return nil
}

// Payload is the canonical byte form a consent signature covers. The
// signature field itself is excluded.
func Payload(vc corridor.VerifiableConsent) []byte {
	revoked := ""
	if vc.RevokedAt != nil {
		revoked = vc.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	var b strings.Builder
	b.WriteString("corridorwatch-consent-v1\n")
	b.WriteString("issuer:" + vc.IssuerDID + "\n")
	b.WriteString("subject:" + vc.SubjectCorridorID + "\n")
	b.WriteString("status:" + string(vc.Status) + "\n")
	b.WriteString("issued_at:" + vc.IssuedAt.UTC().Format(time.RFC3339Nano) + "\n")
	b.WriteString("revoked_at:" + revoked + "\n")
	return []byte(b.String())
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA3256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash algorithm %q", ErrMalformed, hashAlg)
	}
}

// SignEd25519 returns an "ed25519:<base64>" signature over hash(Payload(vc)).
func SignEd25519(vc corridor.VerifiableConsent, hashAlg string, key ed25519.PrivateKey) (string, error) {
	digest, err := digestFor(hashAlg, Payload(vc))
	if err != nil {
		return "", err
	}
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(ed25519.Sign(key, digest)), nil
}

// SignDilithium3 returns a "dilithium3:<base64>" signature over hash(Payload(vc)).
func SignDilithium3(vc corridor.VerifiableConsent, hashAlg string, key *mode3.PrivateKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("missing private key")
	}
	digest, err := digestFor(hashAlg, Payload(vc))
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(key, digest, sig)
	return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(sig), nil
}

// GenerateDilithium3 returns a new keypair.
func GenerateDilithium3(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// EncodePublicKey renders a public key in TrustedKey form.
func EncodePublicKey(alg string, raw []byte) string {
	return alg + ":" + base64.StdEncoding.EncodeToString(raw)
}
