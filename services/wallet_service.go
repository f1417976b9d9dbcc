package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"whalewatch-backend/models"
	"whalewatch-backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddWatchInput is the validated body of a wallets-add-watch call.
type AddWatchInput struct {
	AddressOrENS   string `json:"address_or_ens" validate:"required"`
	ChainNamespace string `json:"chain_namespace" validate:"required"`
	Label          string `json:"label" validate:"omitempty,max=64"`
}

// RemoveResult reports a deletion plus any primary promotion it triggered.
type RemoveResult struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count,omitempty"`
	NewPrimaryID string `json:"new_primary_id,omitempty"`
}

// QuotaSummary is the usage block returned by wallets-list.
type QuotaSummary struct {
	UsedAddresses int    `json:"used_addresses"`
	UsedRows      int    `json:"used_rows"`
	Total         int    `json:"total"`
	Plan          string `json:"plan"`
}

// lockUserWallets reads all of a user's rows under FOR UPDATE so that every
// read-then-write on is_primary or the quota is linearized per user. SQLite
// (the in-memory test database) has a single writer and no FOR UPDATE syntax,
// so the locking clause applies on Postgres only.
func lockUserWallets(tx *gorm.DB, userID string) ([]models.Wallet, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.Wallet
	err := q.Where("user_id = ?", userID).
		Find(&rows).Error
	return rows, err
}

// AddWatch validates, resolves and persists one watched address. The first
// wallet a user adds becomes primary. Classification runs before anything
// touches the database, and secret-shaped input never gets close to a row.
func AddWatch(ctx context.Context, tx *gorm.DB, userID, plan string, input AddWatchInput, resolver ENSResolver) (*models.Wallet, error) {
	utils.NormalizeDTO(&input)

	if !utils.ValidNetwork(input.ChainNamespace) {
		return nil, models.ErrInvalidAddress("unsupported chain namespace: " + input.ChainNamespace)
	}

	address := input.AddressOrENS
	label := input.Label
	switch utils.ClassifyInput(input.AddressOrENS) {
	case utils.KindAddress:
		// keep as typed
	case utils.KindENS:
		resolved, err := resolver.Resolve(ctx, strings.ToLower(input.AddressOrENS))
		if err != nil {
			return nil, models.ErrENSResolutionFailed(input.AddressOrENS)
		}
		address = resolved
		if label == "" {
			label = strings.ToLower(input.AddressOrENS)
		}
	case utils.KindPrivateKey:
		return nil, models.ErrPrivateKeyDetected()
	case utils.KindSeedPhrase:
		return nil, models.ErrSeedPhraseDetected()
	default:
		return nil, models.ErrInvalidAddress("not a valid address or ENS name")
	}

	if !strings.HasPrefix(strings.ToLower(address), "0x") {
		address = "0x" + address
	}
	canonical := utils.CanonicalAddress(address)

	rows, err := lockUserWallets(tx, userID)
	if err != nil {
		return nil, err
	}

	if models.FindPair(rows, canonical, input.ChainNamespace) != nil {
		return nil, models.ErrWalletDuplicate()
	}

	limit := models.AddressQuota(plan)
	distinct := models.DistinctAddressCount(rows)
	if !models.HasAddress(rows, canonical) && distinct+1 > limit {
		return nil, models.ErrQuotaExceeded(plan, limit)
	}

	wallet := models.Wallet{
		UserId:         userID,
		Address:        address,
		ChainNamespace: input.ChainNamespace,
		Label:          label,
		IsPrimary:      len(rows) == 0,
	}
	if err := tx.Create(&wallet).Error; err != nil {
		// The unique (user, address, network) index is the final duplicate
		// guard, e.g. for a retry arriving after the idempotency TTL.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.ErrWalletDuplicate()
		}
		return nil, err
	}

	return &wallet, nil
}

// promoteAfterDelete makes the canonical-first survivor primary when the
// deleted rows included the primary. Returns the promoted id, if any.
func promoteAfterDelete(tx *gorm.DB, survivors []models.Wallet, removedPrimary bool) (string, error) {
	if !removedPrimary {
		return "", nil
	}
	cand := models.PromotionCandidate(survivors)
	if cand == nil {
		return "", nil
	}
	err := tx.Model(&models.Wallet{}).
		Where("id = ?", cand.Id).
		Update("is_primary", true).Error
	if err != nil {
		return "", err
	}
	return cand.Id, nil
}

// RemoveWallet deletes one row and promotes a replacement primary if needed.
func RemoveWallet(tx *gorm.DB, userID, walletID string) (*RemoveResult, error) {
	rows, err := lockUserWallets(tx, userID)
	if err != nil {
		return nil, err
	}

	var target *models.Wallet
	survivors := make([]models.Wallet, 0, len(rows))
	for i := range rows {
		if rows[i].Id == walletID {
			target = &rows[i]
		} else {
			survivors = append(survivors, rows[i])
		}
	}
	if target == nil {
		return nil, models.ErrNotFound("wallet")
	}

	if err := tx.Delete(&models.Wallet{}, "id = ? AND user_id = ?", walletID, userID).Error; err != nil {
		return nil, err
	}

	newPrimary, err := promoteAfterDelete(tx, survivors, target.IsPrimary)
	if err != nil {
		return nil, err
	}

	return &RemoveResult{Success: true, NewPrimaryID: newPrimary}, nil
}

// RemoveAddress deletes every network row for an address (case-insensitive),
// with the same promotion rule.
func RemoveAddress(tx *gorm.DB, userID, address string) (*RemoveResult, error) {
	lower := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(lower, "0x") {
		lower = "0x" + lower
	}

	rows, err := lockUserWallets(tx, userID)
	if err != nil {
		return nil, err
	}

	removedPrimary := false
	deleted := 0
	survivors := make([]models.Wallet, 0, len(rows))
	for i := range rows {
		if strings.ToLower(rows[i].Address) == lower {
			deleted++
			if rows[i].IsPrimary {
				removedPrimary = true
			}
		} else {
			survivors = append(survivors, rows[i])
		}
	}
	if deleted == 0 {
		return nil, models.ErrNotFound("address")
	}

	if err := tx.Where("user_id = ? AND address_lower = ?", userID, lower).
		Delete(&models.Wallet{}).Error; err != nil {
		return nil, err
	}

	newPrimary, err := promoteAfterDelete(tx, survivors, removedPrimary)
	if err != nil {
		return nil, err
	}

	return &RemoveResult{Success: true, DeletedCount: deleted, NewPrimaryID: newPrimary}, nil
}

// SetPrimary flips exactly one row to primary. Clear-then-set inside the
// request transaction; the partial unique index rejects any second primary.
func SetPrimary(tx *gorm.DB, userID, walletID string) (*models.Wallet, error) {
	rows, err := lockUserWallets(tx, userID)
	if err != nil {
		return nil, err
	}

	var target *models.Wallet
	for i := range rows {
		if rows[i].Id == walletID {
			target = &rows[i]
			break
		}
	}
	if target == nil {
		return nil, models.ErrNotFound("wallet")
	}

	if err := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND is_primary", userID).
		Update("is_primary", false).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("is_primary", true).Error; err != nil {
		return nil, err
	}

	target.IsPrimary = true
	return target, nil
}

// UpdateLabel patches the user-facing label only.
func UpdateLabel(tx *gorm.DB, userID, walletID string, updates map[string]any) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := tx.Where("id = ? AND user_id = ?", walletID, userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound("wallet")
		}
		return nil, err
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := tx.Model(&wallet).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &wallet, nil
}

// ListWallets returns the user's rows in canonical order plus the quota block
// and the primary hint.
func ListWallets(db *gorm.DB, userID, plan string) ([]models.Wallet, QuotaSummary, *string, error) {
	var rows []models.Wallet
	err := db.Where("user_id = ?", userID).
		Order(models.CanonicalOrder).
		Find(&rows).Error
	if err != nil {
		return nil, QuotaSummary{}, nil, err
	}

	quota := QuotaSummary{
		UsedAddresses: models.DistinctAddressCount(rows),
		UsedRows:      len(rows),
		Total:         models.AddressQuota(plan),
		Plan:          plan,
	}

	var primaryID *string
	if p := models.FindPrimary(rows); p != nil {
		primaryID = &p.Id
	}
	return rows, quota, primaryID, nil
}
