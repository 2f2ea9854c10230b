package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"taskledger/backend/internal/cache"
	"taskledger/backend/internal/database"
	"taskledger/backend/internal/repositories"
	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

const (
	today     = "2024-06-15"
	yesterday = "2024-06-14"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "handlers.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	migrations := repositories.DefaultMigrationConfig()
	migrations.RetryDelay = 0
	if err := repositories.RunMigrations(pool.DB, migrations); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store := cache.NewMemoryCache()
	t.Cleanup(func() { store.Close() })

	hasher := services.NewPasswordHasher(bcrypt.MinCost)
	tokens := services.NewTokenManager(services.TokenConfig{
		Secret:     "handler-secret",
		Issuer:     "task-ledger-test",
		Audience:   "task-ledger-users",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	revoked := services.NewRevocationList(store)

	router := gin.New()
	RegisterRoutes(router, Dependencies{
		Gate:            services.NewAccessGate(tokens, revoked),
		AuthService:     services.NewAuthService(pool.DB, hasher, tokens, revoked),
		RegisterService: services.NewRegisterService(pool.DB, hasher),
		TaskService:     services.NewTaskService(pool.DB).WithClock(func() time.Time { return fixedNow }),
	})

	return &testServer{router: router, db: pool.DB}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) map[string]string {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var body map[string]string
	decodeJSON(t, w, &body)
	if body["error"] != kind {
		t.Errorf("error = %q, want %q", body["error"], kind)
	}
	return body
}

func (s *testServer) register(t *testing.T, username, password string) {
	t.Helper()
	w := s.do(t, "POST", "/api/v1/auth/register", "", gin.H{"username": username, "password": password})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, w.Code, w.Body.String())
	}
}

func (s *testServer) login(t *testing.T, username, password string) services.TokenPair {
	t.Helper()
	w := s.do(t, "POST", "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var pair services.TokenPair
	decodeJSON(t, w, &pair)
	return pair
}

func (s *testServer) createTask(t *testing.T, token string, task gin.H) string {
	t.Helper()
	w := s.do(t, "POST", "/api/v1/tasks", token, task)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status %d body %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeJSON(t, w, &body)
	return body["id"]
}

func (s *testServer) listTasks(t *testing.T, token string) []map[string]interface{} {
	t.Helper()
	w := s.do(t, "GET", "/api/v1/tasks", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list tasks: status %d body %s", w.Code, w.Body.String())
	}
	var tasks []map[string]interface{}
	decodeJSON(t, w, &tasks)
	return tasks
}

func (s *testServer) listLog(t *testing.T, token string) []map[string]interface{} {
	t.Helper()
	w := s.do(t, "GET", "/api/v1/tasklog", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list log: status %d body %s", w.Code, w.Body.String())
	}
	var entries []map[string]interface{}
	decodeJSON(t, w, &entries)
	return entries
}

func TestAliceScenario(t *testing.T) {
	s := setupTestServer(t)

	s.register(t, "alice", "pw1")
	pair := s.login(t, "alice", "pw1")
	if pair.TokenType != "Bearer" || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("unexpected token pair: %+v", pair)
	}

	w := s.do(t, "POST", "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong"})
	expectError(t, w, http.StatusUnauthorized, "invalid_credentials")

	id := s.createTask(t, pair.AccessToken, gin.H{
		"title":       "Buy milk",
		"description": "",
		"priority":    2,
		"due_date":    today,
	})

	tasks := s.listTasks(t, pair.AccessToken)
	if len(tasks) != 1 || tasks[0]["id"] != id {
		t.Fatalf("tasks = %v, want [%s]", tasks, id)
	}
	if tasks[0]["title"] != "Buy milk" || tasks[0]["due_date"] != today || tasks[0]["status"] != "pending" {
		t.Errorf("unexpected task fields: %v", tasks[0])
	}

	entries := s.listLog(t, pair.AccessToken)
	if len(entries) != 1 || entries[0]["action"] != "CREATE" || entries[0]["task_id"] != id {
		t.Fatalf("log = %v, want one CREATE entry", entries)
	}

	w = s.do(t, "DELETE", "/api/v1/tasks/"+id, pair.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d body %s", w.Code, w.Body.String())
	}

	if tasks := s.listTasks(t, pair.AccessToken); len(tasks) != 0 {
		t.Errorf("tasks after delete = %v, want []", tasks)
	}

	entries = s.listLog(t, pair.AccessToken)
	if len(entries) != 2 || entries[0]["action"] != "CREATE" || entries[1]["action"] != "DELETE" {
		t.Fatalf("log = %v, want CREATE then DELETE", entries)
	}
	if entries[1]["title"] != "Buy milk" {
		t.Errorf("DELETE entry should capture the deleted task, got %v", entries[1])
	}
}

func TestTwoUsersAreIsolated(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "user-a", "secret-a")
	s.register(t, "user-b", "secret-b")
	a := s.login(t, "user-a", "secret-a").AccessToken
	b := s.login(t, "user-b", "secret-b").AccessToken

	idA := s.createTask(t, a, gin.H{"title": "A", "priority": 1, "due_date": today})
	idB := s.createTask(t, b, gin.H{"title": "B", "priority": 1, "due_date": today})

	tasks := s.listTasks(t, b)
	if len(tasks) != 1 || tasks[0]["id"] != idB {
		t.Fatalf("B sees %v, want only %s", tasks, idB)
	}

	update := gin.H{"title": "mine now", "priority": 1, "due_date": today, "status": "completed"}
	expectError(t, s.do(t, "DELETE", "/api/v1/tasks/"+idA, b, nil), http.StatusNotFound, "not_found")
	expectError(t, s.do(t, "PUT", "/api/v1/tasks/"+idA, b, update), http.StatusNotFound, "not_found")
	expectError(t, s.do(t, "GET", "/api/v1/tasks/"+idA, b, nil), http.StatusNotFound, "not_found")

	w := s.do(t, "GET", "/api/v1/tasks/"+idA, a, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner get: status %d", w.Code)
	}
	var task map[string]interface{}
	decodeJSON(t, w, &task)
	if task["title"] != "A" {
		t.Errorf("foreign calls must not mutate the task, got %v", task)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := setupTestServer(t)

	expectError(t, s.do(t, "GET", "/api/v1/tasks", "", nil), http.StatusUnauthorized, "unauthenticated")
	expectError(t, s.do(t, "GET", "/api/v1/tasklog", "", nil), http.StatusUnauthorized, "unauthenticated")
	expectError(t, s.do(t, "GET", "/api/v1/tasks", "garbage", nil), http.StatusUnauthorized, "invalid_credential")
}

func TestCreateTaskValidation(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	token := s.login(t, "alice", "pw1").AccessToken

	tests := []struct {
		name   string
		body   interface{}
		reason string
	}{
		{"zero priority", gin.H{"title": "t", "priority": 0, "due_date": today}, "priority must be a positive integer"},
		{"negative priority", gin.H{"title": "t", "priority": -3, "due_date": today}, "priority must be a positive integer"},
		{"alpha priority", gin.H{"title": "t", "priority": "abc", "due_date": today}, "priority must be a positive integer"},
		{"past date", gin.H{"title": "t", "priority": 5, "due_date": yesterday}, "due date cannot be in the past"},
		{"missing title", gin.H{"priority": 5, "due_date": today}, "missing required field"},
		{"bad date", gin.H{"title": "t", "priority": 5, "due_date": "June 15"}, "due date must be a date in YYYY-MM-DD format"},
		{"malformed body", "{not json", "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, "POST", "/api/v1/tasks", token, tt.body)
			body := expectError(t, w, http.StatusBadRequest, "validation_error")
			if body["message"] != tt.reason {
				t.Errorf("message = %q, want %q", body["message"], tt.reason)
			}
		})
	}

	if tasks := s.listTasks(t, token); len(tasks) != 0 {
		t.Errorf("rejected requests must not create tasks, got %v", tasks)
	}

	s.createTask(t, token, gin.H{"title": "t", "priority": "5", "due_date": today})
}

func TestUpdateTask(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	token := s.login(t, "alice", "pw1").AccessToken
	id := s.createTask(t, token, gin.H{"title": "draft", "priority": 1, "due_date": today})

	w := s.do(t, "PUT", "/api/v1/tasks/"+id, token, gin.H{"title": "final", "priority": 3, "due_date": today})
	body := expectError(t, w, http.StatusBadRequest, "validation_error")
	if body["message"] != "missing required field" {
		t.Errorf("message = %q", body["message"])
	}

	w = s.do(t, "PUT", "/api/v1/tasks/"+id, token, gin.H{
		"title":    "final",
		"priority": 3,
		"due_date": "2024-07-01",
		"status":   "in_progress",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", w.Code, w.Body.String())
	}

	tasks := s.listTasks(t, token)
	if len(tasks) != 1 || tasks[0]["title"] != "final" || tasks[0]["status"] != "in_progress" {
		t.Fatalf("tasks = %v", tasks)
	}

	entries := s.listLog(t, token)
	if len(entries) != 2 || entries[1]["action"] != "UPDATE" || entries[1]["due_date"] != "2024-07-01" {
		t.Errorf("log = %v, want CREATE then UPDATE", entries)
	}
}

func TestUnknownTaskIDs(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	token := s.login(t, "alice", "pw1").AccessToken

	for _, id := range []string{"not-a-uuid", "6f1c1d1e-8d7a-4c47-9b0f-2f4f1d6a9c11"} {
		expectError(t, s.do(t, "GET", "/api/v1/tasks/"+id, token, nil), http.StatusNotFound, "not_found")
		expectError(t, s.do(t, "DELETE", "/api/v1/tasks/"+id, token, nil), http.StatusNotFound, "not_found")
	}
}

func TestClearTaskLog(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	token := s.login(t, "alice", "pw1").AccessToken

	for i := 0; i < 2; i++ {
		w := s.do(t, "DELETE", "/api/v1/tasklog", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("clear log: status %d", w.Code)
		}
	}

	s.createTask(t, token, gin.H{"title": "t", "priority": 1, "due_date": today})
	if w := s.do(t, "DELETE", "/api/v1/tasklog", token, nil); w.Code != http.StatusOK {
		t.Fatalf("clear log: status %d", w.Code)
	}
	if entries := s.listLog(t, token); len(entries) != 0 {
		t.Errorf("log after clear = %v", entries)
	}
	if tasks := s.listTasks(t, token); len(tasks) != 1 {
		t.Errorf("clearing the log must keep tasks, got %v", tasks)
	}
}

func TestRegistrationConflict(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")

	w := s.do(t, "POST", "/api/v1/auth/register", "", gin.H{"username": "alice", "password": "other"})
	expectError(t, w, http.StatusConflict, "username_taken")

	w = s.do(t, "POST", "/api/v1/auth/register", "", gin.H{"username": "x", "password": "pw1"})
	expectError(t, w, http.StatusBadRequest, "validation_error")
}

func TestRefreshAndLogout(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	first := s.login(t, "alice", "pw1")

	w := s.do(t, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": first.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", w.Code, w.Body.String())
	}
	var second services.TokenPair
	decodeJSON(t, w, &second)

	w = s.do(t, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": first.RefreshToken})
	expectError(t, w, http.StatusUnauthorized, "invalid_credential")

	w = s.do(t, "POST", "/api/v1/auth/logout", second.AccessToken, gin.H{"refresh_token": second.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status %d body %s", w.Code, w.Body.String())
	}

	expectError(t, s.do(t, "GET", "/api/v1/tasks", second.AccessToken, nil), http.StatusUnauthorized, "invalid_credential")

	w = s.do(t, "POST", "/api/v1/auth/refresh", "", gin.H{"refresh_token": second.RefreshToken})
	expectError(t, w, http.StatusUnauthorized, "invalid_credential")

	expectError(t, s.do(t, "POST", "/api/v1/auth/logout", "", nil), http.StatusUnauthorized, "unauthenticated")
}

func TestStorageFailure(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "alice", "pw1")
	token := s.login(t, "alice", "pw1").AccessToken

	if err := s.db.Exec("DROP TABLE task_logs").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	w := s.do(t, "POST", "/api/v1/tasks", token, gin.H{"title": "t", "priority": 1, "due_date": today})
	body := expectError(t, w, http.StatusInternalServerError, "storage_failure")
	if body["message"] != "internal server error" {
		t.Errorf("storage errors must not leak details, got %q", body["message"])
	}

	if tasks := s.listTasks(t, token); len(tasks) != 0 {
		t.Errorf("failed create must roll back, got %v", tasks)
	}
}
