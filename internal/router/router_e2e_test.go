package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/driving-lms-auth/config"
	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/api/auth"
	"github.com/FACorreiaa/driving-lms-auth/internal/api/auth/authtest"
	"github.com/FACorreiaa/driving-lms-auth/internal/router"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

// capturingSender stands in for the mail delivery of reset tokens.
type capturingSender struct {
	mu   sync.Mutex
	last map[string]string
}

func (s *capturingSender) SendPasswordReset(_ context.Context, user types.UserPublic, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[user.Email] = token
	return nil
}

func (s *capturingSender) tokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[email]
}

// E2ETestSuite drives complete user workflows through the HTTP surface.
type E2ETestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	repo   *authtest.MemoryRepo
	sender *capturingSender
	svc    *auth.AuthServiceImpl
}

func (s *E2ETestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	s.repo = authtest.NewMemoryRepo("T1", "T2")
	s.sender = &capturingSender{last: map[string]string{}}

	tokens := auth.NewTokenManager(config.JWTConfig{
		SecretKey:  "e2e-secret",
		Issuer:     "driving-lms-auth",
		Audience:   "driving-lms",
		SessionTTL: time.Hour,
		ResetTTL:   time.Hour,
	})
	s.svc = auth.NewAuthService(s.repo, tokens, auth.NewBcryptHasher(bcrypt.MinCost), s.sender,
		config.AuthConfig{ResetRequestLimit: 3, ResetRequestWindow: time.Minute}, logger)

	handler := router.SetupRouter(&router.Config{
		AuthHandler:            auth.NewHandlerImpl(s.svc, logger),
		AuthenticateMiddleware: auth.Authenticate(logger, s.svc),
		AllowedOrigins:         []string{"http://localhost:5173"},
	})
	s.server = httptest.NewServer(handler)
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *E2ETestSuite) TearDownTest() {
	s.server.Close()
	s.svc.Wait()
}

func (s *E2ETestSuite) do(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *E2ETestSuite) decode(resp *http.Response, dst any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(dst))
}

func (s *E2ETestSuite) signup(email, tenantID string) types.AuthResult {
	resp := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"email":      email,
		"password":   "p@ss",
		"first_name": "Ana",
		"last_name":  "Silva",
		"tenant_id":  tenantID,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var result types.AuthResult
	s.decode(resp, &result)
	return result
}

func (s *E2ETestSuite) TestPing() {
	resp := s.do(http.MethodGet, "/ping", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *E2ETestSuite) TestOnboardingWorkflow() {
	created := s.signup("ana@school.pt", "T1")
	s.Equal(types.RoleStudent, created.User.Role)
	s.NotEmpty(created.Token)

	resp := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@school.pt", "password": "p@ss"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var logged types.AuthResult
	s.decode(resp, &logged)
	s.Equal(created.User.ID, logged.User.ID)

	resp = s.do(http.MethodGet, "/api/v1/auth/me", logged.Token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var me types.UserPublic
	s.decode(resp, &me)
	s.Equal("T1", me.TenantID)
	s.NotNil(me.LastLogin)

	resp = s.do(http.MethodPatch, "/api/v1/auth/me/profile", logged.Token, map[string]any{
		"first_name": "Joana",
		"settings":   map[string]any{"theme": "dark"},
		"role":       "super_admin",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var updated types.UserPublic
	s.decode(resp, &updated)
	s.Equal("Joana", updated.Profile.FirstName)
	s.Equal("dark", updated.Profile.Settings["theme"])
	s.Equal(types.RoleStudent, updated.Role)
}

func (s *E2ETestSuite) TestErrorHandling() {
	s.signup("ana@school.pt", "T1")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"DuplicateEmail", http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
			"email": "ana@school.pt", "password": "x", "first_name": "A", "last_name": "B", "tenant_id": "T1",
		}, http.StatusConflict},
		{"UnknownTenant", http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
			"email": "new@school.pt", "password": "x", "first_name": "A", "last_name": "B", "tenant_id": "T404",
		}, http.StatusBadRequest},
		{"AdminSelfSignup", http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
			"email": "boss@school.pt", "password": "x", "first_name": "A", "last_name": "B", "tenant_id": "T1", "role": "school_admin",
		}, http.StatusBadRequest},
		{"WrongPassword", http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@school.pt", "password": "nope"}, http.StatusUnauthorized},
		{"UnknownEmail", http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@school.pt", "password": "nope"}, http.StatusUnauthorized},
		{"NoToken", http.MethodGet, "/api/v1/auth/me", "", nil, http.StatusUnauthorized},
		{"BadToken", http.MethodGet, "/api/v1/auth/me", "not-a-jwt", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			resp := s.do(tc.method, tc.path, tc.token, tc.body)
			s.Equal(tc.status, resp.StatusCode)
			var body api.ErrorBody
			s.decode(resp, &body)
			s.False(body.Success)
			s.NotEmpty(body.Error)
		})
	}
}

func (s *E2ETestSuite) TestPasswordResetWorkflow() {
	s.signup("ana@school.pt", "T1")

	var known, unknown api.Response
	resp := s.do(http.MethodPost, "/api/v1/auth/password/forgot", "", map[string]string{"email": "ana@school.pt"})
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	s.decode(resp, &known)
	resp = s.do(http.MethodPost, "/api/v1/auth/password/forgot", "", map[string]string{"email": "ghost@school.pt"})
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	s.decode(resp, &unknown)
	s.Equal(known, unknown)

	s.svc.Wait()
	token := s.sender.tokenFor("ana@school.pt")
	s.Require().NotEmpty(token)

	resp = s.do(http.MethodPost, "/api/v1/auth/password/reset", "", map[string]string{"token": token, "new_password": "r3set"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/password/reset", "", map[string]string{"token": token, "new_password": "again"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@school.pt", "password": "r3set"})
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *E2ETestSuite) TestChangePasswordWorkflow() {
	created := s.signup("ana@school.pt", "T1")

	resp := s.do(http.MethodPut, "/api/v1/auth/me/password", created.Token,
		map[string]string{"current_password": "wrong", "new_password": "n3w"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodPut, "/api/v1/auth/me/password", created.Token,
		map[string]string{"current_password": "p@ss", "new_password": "n3w"})
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@school.pt", "password": "n3w"})
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *E2ETestSuite) TestTenantAdministration() {
	student := s.signup("student@school.pt", "T1")
	outsider := s.signup("outsider@other.pt", "T2")

	admin := s.repo.Seed(types.User{TenantID: "T1", Email: "admin@school.pt", Role: types.RoleSchoolAdmin, IsActive: true})
	hash, err := bcrypt.GenerateFromPassword([]byte("adm1n"), bcrypt.MinCost)
	s.Require().NoError(err)
	admin.PasswordHash = string(hash)
	s.repo.Seed(admin)

	resp := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@school.pt", "password": "adm1n"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var adminSession types.AuthResult
	s.decode(resp, &adminSession)

	studentPath := fmt.Sprintf("/api/v1/users/%s", student.User.ID)
	outsiderPath := fmt.Sprintf("/api/v1/users/%s", outsider.User.ID)

	s.Equal(http.StatusOK, s.do(http.MethodGet, studentPath, adminSession.Token, nil).StatusCode)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, outsiderPath, adminSession.Token, nil).StatusCode)

	// Students cannot manage accounts.
	resp = s.do(http.MethodPatch, outsiderPath+"/status", student.Token, map[string]bool{"is_active": false})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.do(http.MethodPatch, outsiderPath+"/status", adminSession.Token, map[string]bool{"is_active": false})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodPatch, studentPath+"/status", adminSession.Token, map[string]bool{"is_active": false})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// Deactivation revokes outstanding sessions.
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/auth/me", student.Token, nil).StatusCode)
	resp = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "student@school.pt", "password": "p@ss"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *E2ETestSuite) TestConcurrentSignups() {
	const workers = 10
	var wg sync.WaitGroup
	statuses := make(chan int, workers)

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]any{
				"email":      fmt.Sprintf("user%d@school.pt", i%5),
				"password":   "p@ss",
				"first_name": "A",
				"last_name":  "B",
				"tenant_id":  "T1",
			})
			resp, err := s.client.Post(s.server.URL+"/api/v1/auth/signup", "application/json", bytes.NewReader(body))
			if err != nil {
				statuses <- 0
				return
			}
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for status := range statuses {
		counts[status]++
	}
	s.Equal(5, counts[http.StatusCreated])
	s.Equal(5, counts[http.StatusConflict])
}

func TestE2E(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
