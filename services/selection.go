package services

import (
	"whalewatch-backend/models"
	"whalewatch-backend/utils"
)

// Selection is the resolved active (address, network) pair. Source says which
// rule produced it: "cached", "primary", "first" or "default".
type Selection struct {
	Address *string `json:"address"`
	Network string  `json:"network"`
	Source  string  `json:"source"`
}

func pairOf(w *models.Wallet, source string) Selection {
	addr := w.Address
	return Selection{Address: &addr, Network: w.ChainNamespace, Source: source}
}

// ResolveSelection restores the active selection from a client-cached hint
// against the authoritative wallet set. The hint is never trusted: a stale
// pair is discarded and the fallback chain applies - primary wallet, then
// canonical-first wallet, then no address on the default network. Pure
// function of its inputs; same inputs, same answer, every time.
func ResolveSelection(hintAddress, hintNetwork string, wallets []models.Wallet) Selection {
	if len(wallets) == 0 {
		return Selection{Address: nil, Network: utils.DefaultNetwork, Source: "default"}
	}

	if hintAddress != "" && hintNetwork != "" {
		if match := models.FindPair(wallets, hintAddress, hintNetwork); match != nil {
			return pairOf(match, "cached")
		}
	}

	if primary := models.FindPrimary(wallets); primary != nil {
		return pairOf(primary, "primary")
	}

	sorted := make([]models.Wallet, len(wallets))
	copy(sorted, wallets)
	models.SortCanonical(sorted)
	return pairOf(&sorted[0], "first")
}

// SwitchNetwork changes the active network while keeping the active address
// whenever that address exists on the target network. Otherwise the fallback
// re-applies among the target network's wallets; the chosen network sticks
// either way.
func SwitchNetwork(currentAddress, targetNetwork string, wallets []models.Wallet) Selection {
	if currentAddress != "" {
		if match := models.FindPair(wallets, currentAddress, targetNetwork); match != nil {
			return pairOf(match, "cached")
		}
	}

	onTarget := make([]models.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.ChainNamespace == targetNetwork {
			onTarget = append(onTarget, w)
		}
	}
	if len(onTarget) == 0 {
		return Selection{Address: nil, Network: targetNetwork, Source: "default"}
	}

	if primary := models.FindPrimary(onTarget); primary != nil {
		return pairOf(primary, "primary")
	}
	models.SortCanonical(onTarget)
	return pairOf(&onTarget[0], "first")
}
