package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// Context keys for user information
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	ClaimsKey = "claims"
)

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Detail messages used on 401 responses
const (
	DetailMissingCredentials = "Authentication credentials were not provided."
	DetailInvalidToken       = "Given token not valid for any token type"
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret      string
	TokenPrefix string // "Bearer"
	SkipPaths   []string
	// Now is used for expiry checks; nil means time.Now
	Now func() time.Time
}

// DefaultJWTConfig returns default JWT configuration
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:      secret,
		TokenPrefix: "Bearer",
		SkipPaths:   []string{"/health", "/api/health"},
	}
}

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string, logger zerolog.Logger) gin.HandlerFunc {
	return JWTMiddlewareWithConfig(DefaultJWTConfig(secret), logger)
}

// JWTMiddlewareWithConfig creates a JWT middleware with custom configuration.
// Rejections are answered with a 401 {"detail": ...} body.
func JWTMiddlewareWithConfig(config JWTConfig, logger zerolog.Logger) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn().Str("path", c.Request.URL.Path).Msg("Missing Authorization header")
			unauthorized(c, DetailMissingCredentials)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != config.TokenPrefix {
			logger.Warn().Msg("Invalid Authorization header format")
			unauthorized(c, DetailInvalidToken)
			return
		}

		claims, err := ParseToken(config, parts[1])
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to parse JWT token")
			unauthorized(c, DetailInvalidToken)
			return
		}
		if claims.TokenType != TokenTypeAccess {
			logger.Warn().Str("token_type", claims.TokenType).Msg("Non-access token presented")
			unauthorized(c, DetailInvalidToken)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(ClaimsKey, claims)

		authLogger := logging.WithUserID(logger, claims.UserID)
		authLogger.Debug().Msg("JWT authentication successful")

		c.Next()
	}
}

// ParseToken validates the signature and expiry of tokenString
func ParseToken(config JWTConfig, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if config.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(config.Now))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Secret), nil
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

func unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.DetailResponse{Detail: detail})
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetEmail extracts the account email from context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(EmailKey)
	if !exists {
		return "", false
	}
	emailStr, ok := email.(string)
	return emailStr, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claimsObj, ok := claims.(*Claims)
	return claimsObj, ok
}

// GenerateToken signs a token of the given type issued at now
func GenerateToken(secret string, userID int64, email, tokenType string, now time.Time, expiration time.Duration) (string, error) {
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GeneratePair signs an access/refresh pair. The refresh token lives
// refreshFactor times longer than the access token.
func GeneratePair(secret string, userID int64, email string, now time.Time, accessTTL time.Duration) (access, refresh string, err error) {
	const refreshFactor = 24
	access, err = GenerateToken(secret, userID, email, TokenTypeAccess, now, accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = GenerateToken(secret, userID, email, TokenTypeRefresh, now, accessTTL*refreshFactor)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
