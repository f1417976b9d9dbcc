package middlewares

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"whalewatch-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	authHeader    = "Authorization"
	bearerPrefix  = "Bearer "
	sessionCookie = "jwt"
)

// Claims is our custom JWT payload (subject=userID, plus plan tier).
type Claims struct {
	Plan string `json:"plan"`
	jwt.RegisteredClaims
}

var (
	secretOnce sync.Once
	jwtSecret  []byte
	secretErr  error
)

func loadJWTSecret() error {
	secretOnce.Do(func() {
		// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
		sec := os.Getenv("JWT_SECRET_KEY")
		if strings.TrimSpace(sec) == "" {
			sec = os.Getenv("JWT_SECRET")
		}
		if strings.TrimSpace(sec) == "" {
			secretErr = errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
			return
		}
		jwtSecret = []byte(sec)
	})
	return secretErr
}

// parseToken validates an HS256 token and returns its claims.
func parseToken(raw string) (*Claims, error) {
	if err := loadJWTSecret(); err != nil {
		return nil, err
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token missing subject")
	}
	return &claims, nil
}

// IsAuthenticatedHeader validates a Bearer token, enforces HS256, and
// populates c.Locals("userID","plan"). API callers without a valid token get
// the standard 401 error shape.
func IsAuthenticatedHeader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return models.ErrUnauthorized("missing or invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return models.ErrUnauthorized("invalid bearer token")
		}

		claims, err := parseToken(raw)
		if err != nil {
			return models.ErrUnauthorized("invalid or expired token")
		}

		c.Locals("userID", claims.Subject)
		c.Locals("plan", claims.Plan)

		return c.Next()
	}
}

// SessionClaims extracts claims from the session cookie or the bearer header,
// for page routes where failure means redirect rather than 401.
func SessionClaims(c *fiber.Ctx) (*Claims, bool) {
	raw := strings.TrimSpace(c.Cookies(sessionCookie))
	if raw == "" {
		h := c.Get(authHeader)
		if strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			raw = strings.TrimSpace(h[len(bearerPrefix):])
		}
	}
	if raw == "" {
		return nil, false
	}
	claims, err := parseToken(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// GenerateJWT signs a new HS256 token for the given user & plan, expiring in 24h.
func GenerateJWT(userID, plan string) (string, error) {
	if err := loadJWTSecret(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		Plan: plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}
