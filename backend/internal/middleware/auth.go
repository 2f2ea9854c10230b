package middleware

import (
	"errors"
	"net/http"
	"strings"

	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
)

// bearerToken extracts the credential from an Authorization header. A
// missing header or a bare "Bearer" yields an empty token; any other scheme
// is not ok.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", true
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// AuthzMiddleware rejects requests without a valid bearer credential and
// stores the caller's user id in the gin context.
func AuthzMiddleware(gate services.AccessGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortAuth(c, services.ErrInvalidCredential)
			return
		}

		identity, err := gate.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortAuth(c, err)
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

func abortAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthenticated",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrInvalidCredential):
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_credential",
			"message": services.ErrInvalidCredential.Error(),
		})
	default:
		log.Errorf("❌ Access gate failure: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_failure",
			"message": "internal server error",
		})
	}
}

func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func IdentityFromContext(c *gin.Context) (*services.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*services.Identity)
	return identity, ok
}
