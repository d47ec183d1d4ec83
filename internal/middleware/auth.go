package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// Identity roles
const (
	RoleRider    = "rider"
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// OpsRole is the ops tier layered on top of an admin identity
type OpsRole string

const (
	OpsViewer OpsRole = "OPS_VIEWER"
	OpsAdmin  OpsRole = "OPS_ADMIN"
)

func (r OpsRole) rank() int {
	switch r {
	case OpsViewer:
		return 1
	case OpsAdmin:
		return 2
	default:
		return 0
	}
}

const (
	userIDKey  = "userID"
	roleKey    = "role"
	opsRoleKey = "opsRole"
)

// Claims is the token payload. Subject is the user id.
type Claims struct {
	Role    string  `json:"role"`
	OpsRole OpsRole `json:"opsRole,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token
func IssueToken(secret, subject, role string, opsRole OpsRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:    role,
		OpsRole: opsRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth requires a valid bearer token and stores the identity on the context
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := ParseToken(secret, raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(roleKey, claims.Role)
		c.Set(opsRoleKey, string(claims.OpsRole))
		c.Next()
	}
}

// RequireRole allows only identities with the given role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != role {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// RequireOps allows admin identities whose ops tier is at least min
func RequireOps(min OpsRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != RoleAdmin || OpsRole(c.GetString(opsRoleKey)).rank() < min.rank() {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated subject
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func abort(c *gin.Context, code int, message string) {
	response.Error(c, code, message)
	c.Abort()
}
