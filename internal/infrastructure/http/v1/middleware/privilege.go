package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	appctx "github.com/thenano/openmrs-module-idgen/internal/core/context"
)

// RequirePrivilege middleware checks if the actor holds a privilege.
// Admins implicitly hold all privileges.
func RequirePrivilege(privilege string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if !appctx.HasPrivilege(c.Request.Context(), privilege) {
			_ = c.Error(
				apperror.NewForbidden("insufficient privileges").
					WithDetail("required_privilege", privilege),
			)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyPrivilege middleware checks if the actor holds any of the
// given privileges.
func RequireAnyPrivilege(privileges ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		for _, p := range privileges {
			if appctx.HasPrivilege(c.Request.Context(), p) {
				c.Next()
				return
			}
		}

		_ = c.Error(
			apperror.NewForbidden("insufficient privileges").
				WithDetail("required_privileges", privileges),
		)
		c.Abort()
	}
}
