package controllers

import (
	"whalewatch-backend/database"
	"whalewatch-backend/middlewares"
	"whalewatch-backend/models"
	"whalewatch-backend/services"
	"whalewatch-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type selectionHintInput struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// ResolveSelection handles POST /api/selection-resolve. The body carries the
// client's locally cached (active_address, active_network) hint - the only
// state a client is allowed to persist. A stale hint is simply ignored and
// the deterministic fallback answers instead.
func ResolveSelection(c *fiber.Ctx) error {
	var input selectionHintInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&input)

	userID, _ := authContext(c)

	db, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	var wallets []models.Wallet
	if err := db.Where("user_id = ?", userID).Find(&wallets).Error; err != nil {
		return err
	}

	return c.JSON(services.ResolveSelection(input.Address, input.Network, wallets))
}

type switchNetworkInput struct {
	Address string `json:"address"`
	Network string `json:"network" validate:"required"`
}

// SwitchNetwork handles POST /api/selection-switch-network. Changing network
// keeps the current address whenever it exists on the target network.
func SwitchNetwork(c *fiber.Ctx) error {
	var input switchNetworkInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	utils.NormalizeDTO(&input)

	if !utils.ValidNetwork(input.Network) {
		return models.ErrInvalidAddress("unsupported chain namespace: " + input.Network)
	}

	userID, _ := authContext(c)

	db, err := database.GetRequestDB(c)
	if err != nil {
		return err
	}

	var wallets []models.Wallet
	if err := db.Where("user_id = ?", userID).Find(&wallets).Error; err != nil {
		return err
	}

	return c.JSON(services.SwitchNetwork(input.Address, input.Network, wallets))
}
