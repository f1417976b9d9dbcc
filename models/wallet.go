package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet is one watched address on one network. Addresses are compared through
// AddressLower; Address keeps the case the user typed for display.
type Wallet struct {
	Id             string         `json:"id" gorm:"primaryKey"`
	UserId         string         `json:"-" gorm:"not null;index"`
	Address        string         `json:"address" gorm:"not null"`
	AddressLower   string         `json:"-" gorm:"not null;index"`
	ChainNamespace string         `json:"chain_namespace" gorm:"not null"`
	IsPrimary      bool           `json:"is_primary"`
	Label          string         `json:"label"`
	GuardianScores datatypes.JSON `json:"guardian_scores" gorm:"type:jsonb"`
	BalanceCache   datatypes.JSON `json:"balance_cache" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (wallet *Wallet) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if wallet.Id == "" {
		wallet.Id = uuid.NewString()
	}
	wallet.AddressLower = strings.ToLower(wallet.Address)
	return
}

// CanonicalOrder is the SQL form of the one total order used everywhere:
// primary first, then newest, id as the tie-break.
const CanonicalOrder = "is_primary DESC, created_at DESC, id ASC"

// SortCanonical sorts wallets in place into the canonical order. The result
// does not depend on the input order and re-sorting is a no-op.
func SortCanonical(wallets []Wallet) {
	sort.SliceStable(wallets, func(i, j int) bool {
		a, b := wallets[i], wallets[j]
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Id < b.Id
	})
}

// PromotionCandidate returns the wallet that becomes primary after the current
// primary disappears: the first survivor in canonical order, or nil.
func PromotionCandidate(survivors []Wallet) *Wallet {
	if len(survivors) == 0 {
		return nil
	}
	sorted := make([]Wallet, len(survivors))
	copy(sorted, survivors)
	SortCanonical(sorted)
	return &sorted[0]
}

// DistinctAddressCount counts unique addresses across networks,
// case-insensitively. Quotas count addresses, not rows.
func DistinctAddressCount(wallets []Wallet) int {
	seen := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		seen[strings.ToLower(w.Address)] = struct{}{}
	}
	return len(seen)
}

// HasAddress reports whether any row watches the given address on any network.
func HasAddress(wallets []Wallet, address string) bool {
	lower := strings.ToLower(address)
	for _, w := range wallets {
		if strings.ToLower(w.Address) == lower {
			return true
		}
	}
	return false
}

// FindPair returns the row matching the address (case-insensitive) on exactly
// the given network, or nil.
func FindPair(wallets []Wallet, address, network string) *Wallet {
	lower := strings.ToLower(address)
	for i := range wallets {
		if strings.ToLower(wallets[i].Address) == lower && wallets[i].ChainNamespace == network {
			return &wallets[i]
		}
	}
	return nil
}

// FindPrimary returns the user's primary row, or nil if none is set.
func FindPrimary(wallets []Wallet) *Wallet {
	for i := range wallets {
		if wallets[i].IsPrimary {
			return &wallets[i]
		}
	}
	return nil
}
