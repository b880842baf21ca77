package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const subjectContextKey = "auth_subject"

// Claims are the JWT claims accepted by the API.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for subject.
func GenerateToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, expiry and, when set, the issuer.
func ParseToken(tokenStr, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// JWTAuth rejects requests without a valid bearer token. An empty secret
// disables authentication.
func JWTAuth(secret, issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c, "missing or malformed Authorization header")
			}

			claims, err := ParseToken(parts[1], secret, issuer)
			if err != nil {
				return unauthorized(c, "invalid or expired token")
			}

			c.Set(subjectContextKey, claims.Subject)
			return next(c)
		}
	}
}

// Subject returns the authenticated subject, or "" for anonymous requests.
func Subject(c echo.Context) string {
	if v, ok := c.Get(subjectContextKey).(string); ok {
		return v
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  http.StatusUnauthorized,
		"message": http.StatusText(http.StatusUnauthorized),
		"data":    msg,
	})
}
