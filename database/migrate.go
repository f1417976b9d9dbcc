package database

import (
	"fmt"

	"gorm.io/gorm"
)

// EnsureConstraints applies (idempotent) raw-SQL migrations on top of
// AutoMigrate:
// - Unique (user_id, address_lower, chain_namespace): the duplicate guard of
//   last resort, valid even after the idempotency cache expires.
// - Partial unique index on (user_id) WHERE is_primary: the database itself
//   forbids two primaries per user.
// - Idempotency key unique index + expiry index for the purge job.
// - Basic CHECK constraints on address/namespace shape.
func EnsureConstraints() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_address_network ON wallets (user_id, address_lower, chain_namespace)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_one_primary_per_user ON wallets (user_id) WHERE is_primary`,
			`CREATE INDEX IF NOT EXISTS idx_wallets_canonical ON wallets (user_id, is_primary DESC, created_at DESC, id ASC)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
			`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys (expires_at)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []string{
			// address_lower really is the lowercase form
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'wallets'::regclass
					  AND conname  = 'chk_wallets_address_lower'
				) THEN
					ALTER TABLE wallets
					ADD CONSTRAINT chk_wallets_address_lower
					CHECK (address_lower = lower(address));
				END IF;
			END $$;`,
			// chain namespace shape
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'wallets'::regclass
					  AND conname  = 'chk_wallets_chain_namespace'
				) THEN
					ALTER TABLE wallets
					ADD CONSTRAINT chk_wallets_chain_namespace
					CHECK (chain_namespace ~ '^eip155:[0-9]+$');
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
