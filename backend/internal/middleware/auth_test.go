package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskledger/backend/internal/cache"
	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

func newTestGate(t *testing.T) (*services.AccessGateImpl, *services.TokenManager, *services.RevocationList) {
	t.Helper()
	store := cache.NewMemoryCache()
	t.Cleanup(func() { store.Close() })

	tokens := services.NewTokenManager(services.TokenConfig{
		Secret:     "middleware-secret",
		Issuer:     "task-ledger-test",
		Audience:   "task-ledger-users",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	revoked := services.NewRevocationList(store)
	return services.NewAccessGate(tokens, revoked), tokens, revoked
}

func protectedRouter(gate services.AccessGate) *gin.Engine {
	router := setupTestGin()
	router.Use(AuthzMiddleware(gate))
	router.GET("/me", func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String()})
	})
	return router
}

func callMe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body["error"]
}

func TestAuthzMiddleware(t *testing.T) {
	gate, tokens, _ := newTestGate(t)
	router := protectedRouter(gate)

	userID := uuid.Must(uuid.NewV4())
	access, err := tokens.Issue(userID, services.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	refresh, err := tokens.Issue(userID, services.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantKind      string
	}{
		{"no header", "", http.StatusUnauthorized, "unauthenticated"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid_credential"},
		{"malformed token", "Bearer abc.def", http.StatusUnauthorized, "invalid_credential"},
		{"refresh token", "Bearer " + refresh.Token, http.StatusUnauthorized, "invalid_credential"},
		{"valid", "Bearer " + access.Token, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + access.Token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := callMe(router, tt.authorization)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantKind != "" {
				if kind := errorKind(t, w); kind != tt.wantKind {
					t.Errorf("error = %q, want %q", kind, tt.wantKind)
				}
				if w.Header().Get("WWW-Authenticate") == "" {
					t.Error("Expected WWW-Authenticate header")
				}
				return
			}

			var body map[string]string
			json.Unmarshal(w.Body.Bytes(), &body)
			if body["user_id"] != userID.String() {
				t.Errorf("user_id = %q, want %q", body["user_id"], userID)
			}
		})
	}
}

func TestAuthzMiddleware_RevokedToken(t *testing.T) {
	gate, tokens, revoked := newTestGate(t)
	router := protectedRouter(gate)

	access, err := tokens.Issue(uuid.Must(uuid.NewV4()), services.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if w := callMe(router, "Bearer "+access.Token); w.Code != http.StatusOK {
		t.Fatalf("Expected valid token to pass, got %d", w.Code)
	}

	if err := revoked.Revoke(context.Background(), access.JTI, access.ExpiresAt); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	w := callMe(router, "Bearer "+access.Token)
	if w.Code != http.StatusUnauthorized || errorKind(t, w) != "invalid_credential" {
		t.Errorf("Expected revoked token to be rejected, got %d %s", w.Code, w.Body.String())
	}
}

func TestSecureHeader(t *testing.T) {
	router := setupTestGin()
	router.Use(SecureHeader())
	router.GET("/test", okHandler)

	w := doRequest(router, "127.0.0.1:1")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("Expected X-Frame-Options DENY")
	}
}

func TestRecoveryWithLog(t *testing.T) {
	router := setupTestGin()
	router.Use(RecoveryWithLog())
	router.GET("/test", func(c *gin.Context) {
		panic("boom")
	})

	w := doRequest(router, "127.0.0.1:1")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", w.Code)
	}
	if kind := errorKind(t, w); kind != "internal_error" {
		t.Errorf("error = %q", kind)
	}
}
