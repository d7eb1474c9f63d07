package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// RequireRole lets the request through only when the authenticated member
// holds one of roles.
func RequireRole(roles ...membership.Role) gin.HandlerFunc {
	allowed := make(map[membership.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		if MemberID(c) == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[Role(c)]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdministrative admits officers and admins.
func RequireAdministrative() gin.HandlerFunc {
	return RequireRole(membership.RoleAdmin, membership.RoleOfficer)
}
