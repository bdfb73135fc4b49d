package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/AnTengye/contractdesk/config"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/service"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminEmail = "admin@contractdesk.local"
	janeEmail  = "jane.doe@contractdesk.local"
	johnEmail  = "john.smith@contractdesk.local"
	password   = "secret123"
)

var (
	authOnce sync.Once
	authSvc  *service.AuthService
	authErr  error
)

// sharedAuth hashes the test passwords once for the whole package
func sharedAuth(t *testing.T) *service.AuthService {
	t.Helper()
	authOnce.Do(func() {
		authSvc, authErr = service.NewAuthService(&config.Config{
			Auth: config.AuthConfig{JWTSecret: "handler-test-secret", TokenExpireHours: 1},
			Users: []config.User{
				{Email: adminEmail, Password: password, DisplayName: "Ada Admin", Role: "admin"},
				{Email: janeEmail, Password: password, DisplayName: "Jane Doe", Role: "user"},
				{Email: johnEmail, Password: password, DisplayName: "John Smith", Role: "user"},
			},
		}, nil)
	})
	if authErr != nil {
		t.Fatalf("Failed to create auth service: %v", authErr)
	}
	return authSvc
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = data
	return nil
}

func (f *fakeStorage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	return "https://files.test/" + objectName, nil
}

func (f *fakeStorage) Delete(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	return nil
}

type fakeSummarizer struct {
	summary *model.StructuredSummary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, input service.SummaryInput) (*model.StructuredSummary, error) {
	return f.summary, f.err
}

type testEnv struct {
	router *gin.Engine
	store  *store.Store
	files  *fakeStorage
	auth   *service.AuthService
}

type envOptions struct {
	noStorage  bool
	summarizer service.Summarizer
}

func newTestEnv(t *testing.T, opts ...func(*envOptions)) *testEnv {
	t.Helper()
	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	st := store.New()
	t.Cleanup(func() { st.Close() })
	files := &fakeStorage{objects: make(map[string][]byte)}
	var storage service.FileStorage = files
	if o.noStorage {
		storage = nil
	}
	auth := sharedAuth(t)

	dashboard := service.NewDashboardService(st)
	h := &Handlers{
		Auth:      NewAuthHandler(auth, false),
		Contracts: NewContractHandler(service.NewContractService(st, storage, o.summarizer), nil),
		Templates: NewTemplateHandler(service.NewTemplateService(st)),
		Reviews:   NewReviewHandler(service.NewReviewService(st)),
		Tasks:     NewTaskHandler(service.NewTaskService(st)),
		Dashboard: NewDashboardHandler(dashboard),
		Admin:     NewAdminHandler(dashboard),
	}

	router := gin.New()
	router.GET("/health", Health(st))
	h.Register(router, auth, nil)

	return &testEnv{router: router, store: st, files: files, auth: auth}
}

// token signs email in and returns a bearer token
func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	grant, err := e.auth.SignIn(context.Background(), session.Credentials{Email: email, Password: password})
	if err != nil {
		t.Fatalf("Failed to sign in %s: %v", email, err)
	}
	return grant.Token
}

// do sends a JSON request, authenticated when token is not empty
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

// errorBody is the shape of every error response
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
