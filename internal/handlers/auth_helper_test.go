package handlers_test

import (
	"scrumboard/backend/internal/middleware"
	"scrumboard/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func middlewareAuth(user *models.User) gin.HandlerFunc {
	return middleware.Authenticate(fixedAuthenticator{user: user})
}
