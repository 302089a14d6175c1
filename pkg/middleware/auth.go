package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nickruden/diplom-server/pkg/response"
)

const (
	// ContextKeyUserID is the context key of the authenticated user id (int64)
	ContextKeyUserID = "user_id"
	// ContextKeyRole is the context key of the authenticated role
	ContextKeyRole = "role"

	bearerPrefix = "Bearer "
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity carried by an access token
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	Secret string
	Issuer string
	// SkipPaths are served without a token; a token, when present, is still parsed
	SkipPaths []string
}

// TokenValidator parses access tokens signed with a shared HS256 secret
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator creates a validator for secret
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), issuer: issuer}
}

// Validate parses and verifies tokenString
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs a token for userID. Used by tests and local tooling; login lives elsewhere.
func (v *TokenValidator) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Auth validates the bearer token and stores the identity in the gin context
func Auth(config *AuthConfig) gin.HandlerFunc {
	validator := NewTokenValidator(config.Secret, config.Issuer)

	return func(c *gin.Context) {
		optional := false
		for _, path := range config.SkipPaths {
			if matchPath(c.Request.URL.Path, path) {
				optional = true
				break
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("MISSING_TOKEN", "Authorization header is required"))
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) <= len(bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid authorization header format"))
			return
		}

		claims, err := validator.Validate(authHeader[len(bearerPrefix):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Invalid or expired token"))
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose role is not one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Authentication required"))
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden("Insufficient role"))
	}
}

// GetUserID returns the authenticated user id
func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// GetRole returns the authenticated role
func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyRole)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
