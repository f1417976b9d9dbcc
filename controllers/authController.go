package controllers

import (
	"errors"
	"net/mail"
	"time"

	"whalewatch-backend/database"
	"whalewatch-backend/middlewares"
	"whalewatch-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type registerInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	Plan            string `json:"plan" validate:"omitempty,oneof=free pro enterprise"`
}

func Register(c *fiber.Ctx) error {
	var input registerInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	if input.Password != input.PasswordConfirm {
		return fiber.NewError(fiber.StatusBadRequest, "passwords do not match")
	}

	var existing models.User
	err := database.DB.Where("email = ?", input.Email).First(&existing).Error
	if err == nil {
		return fiber.NewError(fiber.StatusBadRequest, "email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user := models.User{
		Email: input.Email,
		Plan:  input.Plan,
	}
	user.SetPassword(input.Password)
	if err := database.DB.Create(&user).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create user")
	}

	return c.JSON(user)
}

func Login(c *fiber.Ctx) error {
	var data map[string]string
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := mail.ParseAddress(data["email"]); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email format")
	}

	var user models.User
	if err := database.DB.Where("email = ?", data["email"]).First(&user).Error; err != nil {
		return models.ErrUnauthorized("invalid credentials")
	}
	if err := user.ComparePassword(data["password"]); err != nil {
		return models.ErrUnauthorized("invalid credentials")
	}

	token, err := middlewares.GenerateJWT(user.Id, user.Plan)
	if err != nil {
		return err
	}

	// Session cookie for page routes; API calls keep using the bearer header.
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
	})

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.Id,
			"email": user.Email,
			"plan":  user.Plan,
		},
	})
}

func Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{
		"message": "success",
	})
}
