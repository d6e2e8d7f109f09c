package middleware

import (
	"ascend/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired admits only callers holding the ADMIN role. Use after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}

