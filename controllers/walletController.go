package controllers

import (
	"whalewatch-backend/database"
	"whalewatch-backend/middlewares"
	"whalewatch-backend/services"
	"whalewatch-backend/utils"
	"whalewatch-backend/workers"

	"github.com/gofiber/fiber/v2"
)

var (
	ensResolver services.ENSResolver
	enricher    *workers.EnrichmentClient
)

// Init wires the external collaborators; call once from main before serving.
func Init(resolver services.ENSResolver, client *workers.EnrichmentClient) {
	ensResolver = resolver
	enricher = client
}

func authContext(c *fiber.Ctx) (userID, plan string) {
	userID, _ = c.Locals("userID").(string)
	plan, _ = c.Locals("plan").(string)
	return
}

// ListWallets handles GET /api/wallets-list.
func ListWallets(c *fiber.Ctx) error {
	userID, plan := authContext(c)

	db, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	wallets, quota, primaryID, err := services.ListWallets(db, userID, plan)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"wallets": wallets,
		"quota":   quota,
		"active_hint": fiber.Map{
			"primary_wallet_id": primaryID,
		},
	})
}

// AddWatch handles POST /api/wallets-add-watch.
func AddWatch(c *fiber.Ctx) error {
	var input services.AddWatchInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	userID, plan := authContext(c)

	tx, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	wallet, err := services.AddWatch(c.Context(), tx, userID, plan, input, ensResolver)
	if err != nil {
		return err
	}

	// Kick enrichment only after the request TX commits, or the background
	// fetch would look up a row that is not visible yet.
	if enricher != nil {
		walletID := wallet.Id
		c.Locals("afterCommit", func() {
			enricher.KickWallet(walletID)
		})
	}

	return c.JSON(fiber.Map{"wallet": wallet})
}

type walletIDInput struct {
	WalletID string `json:"wallet_id" validate:"required,uuid4"`
}

// RemoveWallet handles POST /api/wallets-remove.
func RemoveWallet(c *fiber.Ctx) error {
	var input walletIDInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	userID, _ := authContext(c)

	tx, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	result, err := services.RemoveWallet(tx, userID, input.WalletID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type removeAddressInput struct {
	Address string `json:"address" validate:"required"`
}

// RemoveAddress handles POST /api/wallets-remove-address.
func RemoveAddress(c *fiber.Ctx) error {
	var input removeAddressInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	userID, _ := authContext(c)

	tx, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	result, err := services.RemoveAddress(tx, userID, input.Address)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// SetPrimary handles POST /api/wallets-set-primary.
func SetPrimary(c *fiber.Ctx) error {
	var input walletIDInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	userID, _ := authContext(c)

	tx, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	wallet, err := services.SetPrimary(tx, userID, input.WalletID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"wallet_id": wallet.Id,
	})
}

type updateLabelInput struct {
	WalletID string  `json:"wallet_id" validate:"required,uuid4"`
	Label    *string `json:"label" validate:"omitempty,max=64"`
}

// UpdateLabel handles POST /api/wallets-update-label.
func UpdateLabel(c *fiber.Ctx) error {
	var input updateLabelInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&input)

	userID, _ := authContext(c)

	tx, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	// Only the non-nil pointer fields become columns; wallet_id is not one.
	updates := utils.UpdatesFromPtrDTO(&input, nil)

	wallet, err := services.UpdateLabel(tx, userID, input.WalletID, updates)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"wallet": wallet})
}
