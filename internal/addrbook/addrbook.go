// Package addrbook lists the registered settlement addresses.
package addrbook

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned for addresses that do not match their chain.
var ErrInvalidAddress = errors.New("invalid address")

// Kind is the role of an address.
type Kind string

const (
	Primary       Kind = "primary"
	Alternate     Kind = "alternate"
	SafeAlternate Kind = "safe_alternate"
)

// Chain names the ledger an address lives on.
type Chain string

const (
	ChainBostrom Chain = "bostrom"
	ChainERC20   Chain = "erc20_compatible"
)

// Governance flags carried with each address.
type Governance struct {
	KYCDIDCompliant      bool `json:"aln_kyc_did_compliant" yaml:"aln_kyc_did_compliant"`
	QuantumReady         bool `json:"quantum_ready" yaml:"quantum_ready"`
	RequiresRTMonitoring bool `json:"requires_rt_monitoring" yaml:"requires_rt_monitoring"`
}

// Address is one registered address.
type Address struct {
	Label      string     `json:"label" yaml:"label"`
	Addr       string     `json:"addr" yaml:"addr"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Chain      Chain      `json:"chain" yaml:"chain"`
	Governance Governance `json:"governance" yaml:"governance"`
}

// Validate checks the address shape for its chain. Bostrom-family addresses
// are lowercase bech32-style "<prefix>1<data>"; ERC-20 addresses are 0x plus
// 40 hex digits.
func (a Address) Validate() error {
	switch a.Chain {
	case ChainBostrom:
		i := strings.LastIndexByte(a.Addr, '1')
		if i <= 0 || i == len(a.Addr)-1 || a.Addr != strings.ToLower(a.Addr) {
			return fmt.Errorf("%w: %q is not a bech32 address", ErrInvalidAddress, a.Addr)
		}
	case ChainERC20:
		if len(a.Addr) != 42 || !strings.HasPrefix(a.Addr, "0x") {
			return fmt.Errorf("%w: %q is not 0x plus 40 hex digits", ErrInvalidAddress, a.Addr)
		}
		if _, err := hex.DecodeString(a.Addr[2:]); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, a.Addr, err)
		}
	default:
		return fmt.Errorf("%w: unknown chain %q", ErrInvalidAddress, a.Chain)
	}
	return nil
}

// Default returns the built-in address book.
func Default() []Address {
	compliant := Governance{KYCDIDCompliant: true, QuantumReady: true}
	monitored := compliant
	monitored.RequiresRTMonitoring = true

	return []Address{
		{Label: "Primary Bostrom", Addr: "bostrom18sd2ujv24ual9c9pshtxys6j8knh6xaead9ye7", Kind: Primary, Chain: ChainBostrom, Governance: compliant},
		{Label: "Alternate Bostrom (Google linked)", Addr: "bostrom1ldgmtf20d6604a24ztr0jxht7xt7az4jhkmsrc", Kind: Alternate, Chain: ChainBostrom, Governance: monitored},
		{Label: "Safe alternate zeta", Addr: "zeta12x0up66pzyeretzyku8p4ccuxrjqtqpdc4y4x8", Kind: SafeAlternate, Chain: ChainBostrom, Governance: compliant},
		{Label: "Safe alternate ERC-20", Addr: "0x519fC0eB4111323Cac44b70e1aE31c30e405802D", Kind: SafeAlternate, Chain: ChainERC20, Governance: compliant},
	}
}

// Find returns the entry with the given address. ERC-20 matching ignores case.
func Find(book []Address, addr string) (Address, bool) {
	for _, a := range book {
		if a.Addr == addr || (a.Chain == ChainERC20 && strings.EqualFold(a.Addr, addr)) {
			return a, true
		}
	}
	return Address{}, false
}

// Filter returns entries of the given kind, or all when kind is empty.
func Filter(book []Address, kind Kind) []Address {
	if kind == "" {
		return book
	}
	var out []Address
	for _, a := range book {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
