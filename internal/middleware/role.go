package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/signflow-api/internal/models"
)

// RequireRole allows the request only when the operator holds one of roles.
// Must run after OperatorAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		operatorID, exists := c.Get(ContextOperatorID)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Operator not authenticated"))
			return
		}

		role := c.GetString(ContextRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, "Insufficient permissions", map[string]interface{}{
			"required_roles": roles,
			"operator_role":  role,
			"operator_id":    operatorID,
		}))
	}
}
