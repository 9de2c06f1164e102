package util

import (
	"errors"
	"learner_insight/internal/model"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity collaborator's view of the caller. Name and Role
// double as profile hints.
type Claims struct {
	LearnerID string `json:"learner_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// UserRole normalizes the role claim; unknown roles come back empty.
func (c *Claims) UserRole() model.UserRole {
	role := model.UserRole(strings.ToLower(strings.TrimSpace(c.Role)))
	if !role.Valid() {
		return ""
	}
	return role
}

// Hints returns the claims as unvalidated profile hints.
func (c *Claims) Hints() model.ProfileHints {
	return model.ProfileHints{DisplayName: c.Name, Role: c.Role}
}

func GenerateJWT(learnerID, name string, role model.UserRole, secret string, expiration time.Duration) (string, error) {
	claims := &Claims{
		LearnerID: learnerID,
		Name:      name,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
