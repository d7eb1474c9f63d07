package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/clubhouse/internal/auth"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxMemberIDKey = "memberID"
	CtxRoleKey     = "memberRole"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxMemberIDKey, claims.MemberID)
		c.Set(CtxRoleKey, membership.ParseRole(string(claims.Role)))

		c.Next()
	}
}

// MemberID returns the authenticated member id, or "" outside Auth.
func MemberID(c *gin.Context) string {
	return c.GetString(CtxMemberIDKey)
}

// Role returns the authenticated member's role. Requests that did not pass
// through Auth are treated as plain users.
func Role(c *gin.Context) membership.Role {
	if v, ok := c.Get(CtxRoleKey); ok {
		if role, ok := v.(membership.Role); ok {
			return role
		}
	}
	return membership.RoleUser
}
