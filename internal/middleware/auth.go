package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "orgfolio/internal/errors"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey      = "userID"
	OrganismIDsKey = "organismIDs"
)

const (
	tokenIssuer       = "orgfolio-api"
	accessTokenExpiry = 15 * time.Minute
	accessTokenType   = "access"
	bearerPrefix      = "Bearer"
)

// JWTClaims carries the caller identity. OrganismIDs lists the organisms
// whose portfolios the caller may read and change.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	OrganismIDs []string `json:"organism_ids"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken issues a short-lived access token for a user and the
// organisms they belong to.
func GenerateAccessToken(secret, userID string, organismIDs []string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:      userID,
		OrganismIDs: organismIDs,
		TokenType:   accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken validates a token string and returns its claims.
func ParseAccessToken(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	if claims.TokenType != accessTokenType {
		return nil, fmt.Errorf("token is not an access token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}

// AuthMiddleware verifies the bearer token and puts the user and organism
// ids in the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != bearerPrefix {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := ParseAccessToken(secret, parts[1])
		if err != nil {
			abortWithAppError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(OrganismIDsKey, claims.OrganismIDs)
		c.Next()
	}
}

// OrganismIDs returns the organisms of the authenticated caller.
func OrganismIDs(c *gin.Context) []string {
	v, ok := c.Get(OrganismIDsKey)
	if !ok {
		return nil
	}
	ids, _ := v.([]string)
	return ids
}

// CanAccessOrganism reports whether the caller belongs to organismID.
func CanAccessOrganism(c *gin.Context, organismID string) bool {
	for _, id := range OrganismIDs(c) {
		if id == organismID {
			return true
		}
	}
	return false
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
