package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/corridorwatch/internal/corridor"
)

// SeedFile is the on-disk shape of a corridor seed file.
//
//	corridors:
//	  - id: did:example:corridor:phoenix-desert
//	    kind: desert
//	    eco: {soil_health: 0.8, water_quality: 0.7, ...}
//	    fpic: {status: granted, at: 2026-01-01T00:00:00Z}
type SeedFile struct {
	Corridors []any `yaml:"corridors"`
}

// LoadFile reads corridor records from a YAML seed file. Each record is
// decoded through its JSON form so the same validation applies to YAML,
// JSON and database records.
func LoadFile(path string) ([]corridor.Corridor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corridor file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]corridor.Corridor, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse corridor file: %w", err)
	}

	out := make([]corridor.Corridor, 0, len(f.Corridors))
	for i, raw := range f.Corridors {
		js, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("corridor %d: %w", i, err)
		}
		var c corridor.Corridor
		if err := json.Unmarshal(js, &c); err != nil {
			return nil, fmt.Errorf("corridor %d: %w", i, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("corridor %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Seed upserts every record into r.
func Seed(r Registry, cs []corridor.Corridor) error {
	for _, c := range cs {
		if err := r.Upsert(c); err != nil {
			return fmt.Errorf("seed %s: %w", c.ID, err)
		}
	}
	return nil
}

// Reseed brings r in line with a new seed file. prev lists the ids the
// previous seed installed; those missing from next are deleted. Records
// stored through Upsert by other callers are left alone. Every record in
// next is validated before r is touched. Reseed returns the ids next installs.
func Reseed(r Registry, prev []corridor.ID, next []corridor.Corridor) ([]corridor.ID, error) {
	keep := make(map[corridor.ID]bool, len(next))
	ids := make([]corridor.ID, 0, len(next))
	for _, c := range next {
		if err := r.Validate(c); err != nil {
			return nil, fmt.Errorf("seed %s: %w", c.ID, err)
		}
		if !keep[c.ID] {
			ids = append(ids, c.ID)
		}
		keep[c.ID] = true
	}
	if err := Seed(r, next); err != nil {
		return nil, err
	}
	for _, id := range prev {
		if keep[id] {
			continue
		}
		if err := r.Delete(id); err != nil {
			return nil, fmt.Errorf("unseed %s: %w", id, err)
		}
	}
	return ids, nil
}

// ExampleSeedYAML returns a commented seed file for init-config.
func ExampleSeedYAML() string {
	return `# corridorwatch corridor registry seed
# Generated by: corridorwatch init-config
#
# Each record is validated on load. Eco metrics are within [0.0, 1.0].
# fpic.status and consent.status: pending | granted | withheld | revoked.
# Reloaded automatically by corridorwatch serve when this file changes.

corridors:
  - id: did:example:corridor:phoenix-desert
    kind: desert
    name: Phoenix desert corridor
    eco:
      soil_health: 0.8
      water_quality: 0.7
      microbiome_diversity: 0.9
      corridor_resilience: 0.85
    fpic:
      status: granted
      at: "2026-01-01T00:00:00Z"
      communities: [akimel-oodham]
      terms_ref: ipfs://example-terms
    consent:
      issuer_did: did:example:tribal-council:xyz
      subject_corridor_id: did:example:corridor:phoenix-desert
      status: granted
      issued_at: "2026-01-01T00:00:00Z"
    ids_scope:
      contains_indigenous_data: true
      governed_by_ids_framework: true
      governance_ref: care-principles
    rights:
      forbid_coercive_signaling: true
      forbid_covert_inference: true
      forbid_belief_manipulation: true
      require_non_actuation: true
`
}
