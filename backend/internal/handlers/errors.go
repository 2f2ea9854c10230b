package handlers

import (
	"errors"
	"net/http"

	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondError writes the JSON error body for err and logs anything that is
// not the caller's fault.
func respondError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(c, http.StatusBadRequest, "validation_error", ve.Reason)
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(c, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, services.ErrInvalidCredential):
		writeError(c, http.StatusUnauthorized, "invalid_credential", services.ErrInvalidCredential.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(c, http.StatusConflict, "username_taken", err.Error())
	default:
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("❌ Request failed: %v", err)
		writeError(c, http.StatusInternalServerError, "storage_failure", "internal server error")
	}
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   kind,
		"message": message,
	})
}

func badRequestBody(c *gin.Context) {
	writeError(c, http.StatusBadRequest, "validation_error", "invalid request body")
}
