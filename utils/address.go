package utils

import (
	"regexp"
	"strings"
)

// InputKind classifies what the user pasted into the address field.
type InputKind string

const (
	KindAddress    InputKind = "valid_address"
	KindENS        InputKind = "valid_ens"
	KindPrivateKey InputKind = "private_key_pattern"
	KindSeedPhrase InputKind = "seed_phrase_pattern"
	KindInvalid    InputKind = "invalid"
)

// DefaultNetwork is the selection fallback when a user has no wallets.
const DefaultNetwork = "eip155:1"

// SupportedNetworks is the fixed set of CAIP-2 namespaces the registry accepts.
var SupportedNetworks = []string{
	"eip155:1",     // ethereum
	"eip155:10",    // optimism
	"eip155:56",    // bnb chain
	"eip155:137",   // polygon
	"eip155:8453",  // base
	"eip155:42161", // arbitrum
}

var (
	hexRe     = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	networkRe = regexp.MustCompile(`^eip155:\d+$`)
)

// ClassifyInput decides what a raw address-field string is. Secret-shaped
// inputs win over everything else: a 12+ word string is a seed phrase, a
// 64-hex string is a private key, regardless of what else it could parse as.
func ClassifyInput(raw string) InputKind {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return KindInvalid
	}

	if len(strings.Fields(trimmed)) >= 12 {
		return KindSeedPhrase
	}

	hex := strings.TrimPrefix(trimmed, "0x")
	if len(hex) == 64 && hexRe.MatchString(hex) {
		return KindPrivateKey
	}
	if len(hex) == 40 && hexRe.MatchString(hex) {
		return KindAddress
	}

	if strings.HasSuffix(strings.ToLower(trimmed), ".eth") && len(trimmed) > len(".eth") {
		return KindENS
	}

	return KindInvalid
}

// CanonicalAddress lowercases an address and guarantees the 0x prefix.
// Callers must have classified the input as KindAddress first.
func CanonicalAddress(raw string) string {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// ValidNetwork reports whether ns is a well-formed CAIP-2 namespace AND one of
// the supported networks.
func ValidNetwork(ns string) bool {
	if !networkRe.MatchString(ns) {
		return false
	}
	for _, s := range SupportedNetworks {
		if s == ns {
			return true
		}
	}
	return false
}
