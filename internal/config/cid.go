package config

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentID returns a CIDv1 (raw codec, sha2-256) for data. Audit entries
// carry it so a decision can be tied to the exact config bytes.
func ContentID(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// unreachable for SHA2_256 with default length
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// ParseContentID validates a content ID string.
func ParseContentID(s string) (cid.Cid, error) {
	return cid.Decode(s)
}
