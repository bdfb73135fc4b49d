package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/service"
)

type contractList struct {
	Contracts []model.Contract `json:"contracts"`
}

func TestContractHandlerList(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, janeEmail)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{name: "all contracts", query: "", expectedStatus: http.StatusOK, expectedCount: 5},
		{name: "drafts only", query: "?status=draft", expectedStatus: http.StatusOK, expectedCount: 1},
		{name: "rejected only", query: "?status=rejected", expectedStatus: http.StatusOK, expectedCount: 1},
		{name: "unknown status", query: "?status=signed", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "GET", "/api/contracts"+tt.query, token, nil)
			expectStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus != http.StatusOK {
				body := decode[errorBody](t, w)
				if body.Fields["status"] == "" {
					t.Errorf("Expected a status field error, got %+v", body)
				}
				return
			}
			list := decode[contractList](t, w)
			if len(list.Contracts) != tt.expectedCount {
				t.Errorf("Expected %d contracts, got %d", tt.expectedCount, len(list.Contracts))
			}
		})
	}
}

func TestContractHandlerCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, johnEmail)

	w := env.do(t, "POST", "/api/contracts", token, map[string]string{
		"name":        "Wayne Enterprises NDA",
		"template_id": "tpl-nda",
	})
	expectStatus(t, w, http.StatusCreated)

	created := decode[model.Contract](t, w)
	if created.ID == "" || created.Status != model.StatusDraft || created.Version != 1 {
		t.Errorf("Unexpected contract %+v", created)
	}
	if created.UploadedBy != johnEmail {
		t.Errorf("Expected uploaded_by %s, got %s", johnEmail, created.UploadedBy)
	}

	w = env.do(t, "GET", "/api/contracts/"+created.ID, token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[model.Contract](t, w); got.Name != "Wayne Enterprises NDA" {
		t.Errorf("Expected name to round trip, got %q", got.Name)
	}

	w = env.do(t, "GET", "/api/contracts/ctr-9999", token, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestContractHandlerCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, janeEmail)

	tests := []struct {
		name          string
		body          map[string]string
		expectedField string
	}{
		{name: "missing name", body: map[string]string{"name": ""}, expectedField: "name"},
		{name: "unknown template", body: map[string]string{"name": "Orphan", "template_id": "tpl-none"}, expectedField: "template_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/contracts", token, tt.body)
			expectStatus(t, w, http.StatusBadRequest)

			body := decode[errorBody](t, w)
			if body.Error != "Validation failed" {
				t.Errorf("Expected 'Validation failed', got %q", body.Error)
			}
			if _, ok := body.Fields[tt.expectedField]; !ok {
				t.Errorf("Expected field %s in %v", tt.expectedField, body.Fields)
			}
		})
	}
}

func TestContractHandlerUpdate(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, janeEmail)

	tests := []struct {
		name           string
		id             string
		body           map[string]any
		expectedStatus int
	}{
		{name: "rename", id: "ctr-1003", body: map[string]any{"name": "Initech SOW Q3 (final)"}, expectedStatus: http.StatusOK},
		{name: "allowed transition", id: "ctr-1001", body: map[string]any{"status": "archived"}, expectedStatus: http.StatusOK},
		{name: "forbidden transition", id: "ctr-1004", body: map[string]any{"status": "active"}, expectedStatus: http.StatusBadRequest},
		{name: "unknown status", id: "ctr-1005", body: map[string]any{"status": "signed"}, expectedStatus: http.StatusBadRequest},
		{name: "stale version", id: "ctr-1002", body: map[string]any{"name": "Globex MSA", "version": 7}, expectedStatus: http.StatusConflict},
		{name: "approve without review", id: "ctr-1002", body: map[string]any{"status": "active"}, expectedStatus: http.StatusBadRequest},
		{name: "missing contract", id: "ctr-9999", body: map[string]any{"name": "Ghost"}, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "PATCH", "/api/contracts/"+tt.id, token, tt.body)
			expectStatus(t, w, tt.expectedStatus)
		})
	}
}

func TestContractHandlerUpdateBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, janeEmail)

	w := env.do(t, "PATCH", "/api/contracts/ctr-1003", token, map[string]any{"status": "archived", "version": 1})
	expectStatus(t, w, http.StatusOK)

	updated := decode[model.Contract](t, w)
	if updated.Status != model.StatusArchived || updated.Version != 2 {
		t.Errorf("Expected archived at version 2, got %s at %d", updated.Status, updated.Version)
	}

	// the same version again is now stale
	w = env.do(t, "PATCH", "/api/contracts/ctr-1003", token, map[string]any{"name": "Again", "version": 1})
	expectStatus(t, w, http.StatusConflict)
}

func TestContractHandlerDelete(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "DELETE", "/api/contracts/ctr-1003", env.token(t, johnEmail), nil)
	expectStatus(t, w, http.StatusForbidden)

	w = env.do(t, "DELETE", "/api/contracts/ctr-1003", env.token(t, janeEmail), nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "DELETE", "/api/contracts/ctr-1004", env.token(t, adminEmail), nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "DELETE", "/api/contracts/ctr-1004", env.token(t, adminEmail), nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestContractHandlerSubmitForReview(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, janeEmail)

	w := env.do(t, "POST", "/api/contracts/ctr-1003/review", token, nil)
	expectStatus(t, w, http.StatusCreated)

	review := decode[model.Review](t, w)
	if review.ContractID != "ctr-1003" || review.Status != model.ReviewPending {
		t.Errorf("Unexpected review %+v", review)
	}

	w = env.do(t, "GET", "/api/contracts/ctr-1003", token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[model.Contract](t, w); got.Status != model.StatusPendingReview {
		t.Errorf("Expected pending_review, got %s", got.Status)
	}

	// already pending
	w = env.do(t, "POST", "/api/contracts/ctr-1003/review", token, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

// uploadRequest builds a multipart upload with the given part content type
func uploadRequest(t *testing.T, token, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Failed to write part: %v", err)
		}
	}
	if err := mw.WriteField("name", "Stark Industries Lease"); err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/contracts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestContractHandlerUpload(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	tests := []struct {
		name           string
		filename       string
		contentType    string
		noStorage      bool
		expectedStatus int
	}{
		{name: "pdf", filename: "lease.pdf", contentType: "application/pdf", expectedStatus: http.StatusCreated},
		{name: "pdf without declared type", filename: "lease.pdf", contentType: "application/octet-stream", expectedStatus: http.StatusCreated},
		{name: "docx", filename: "lease.docx", contentType: contentTypeDOCX, expectedStatus: http.StatusCreated},
		{name: "text file", filename: "notes.txt", contentType: "text/plain", expectedStatus: http.StatusBadRequest},
		{name: "no file", filename: "", expectedStatus: http.StatusBadRequest},
		{name: "storage disabled", filename: "lease.pdf", contentType: "application/pdf", noStorage: true, expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(o *envOptions) { o.noStorage = tt.noStorage })
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, uploadRequest(t, env.token(t, janeEmail), tt.filename, tt.contentType, pdf))
			expectStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus != http.StatusCreated {
				return
			}
			contract := decode[model.Contract](t, w)
			if contract.Name != "Stark Industries Lease" || contract.Status != model.StatusDraft {
				t.Errorf("Unexpected contract %+v", contract)
			}
			if contract.FileRef != service.ObjectName(contract.ID, tt.filename) {
				t.Errorf("Unexpected file ref %q", contract.FileRef)
			}
			if _, ok := env.files.objects[contract.FileRef]; !ok {
				t.Error("Expected document in storage")
			}

			w = env.do(t, "GET", "/api/contracts/"+contract.ID, env.token(t, janeEmail), nil)
			expectStatus(t, w, http.StatusOK)
			view := decode[service.ContractView](t, w)
			if view.DownloadURL != "https://files.test/"+contract.FileRef {
				t.Errorf("Unexpected download url %q", view.DownloadURL)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		content  string
		expected string
		err      error
	}{
		{name: "declared pdf", filename: "a.pdf", declared: "application/pdf", content: "%PDF-1.7", expected: contentTypePDF},
		{name: "uppercase extension", filename: "A.PDF", declared: "", content: "%PDF-1.7", expected: contentTypePDF},
		{name: "docx", filename: "a.docx", declared: "application/zip", content: "PK", expected: contentTypeDOCX},
		{name: "sniffed pdf", filename: "a.pdf", declared: "text/plain", content: "%PDF-1.7\n", expected: contentTypePDF},
		{name: "html posing as pdf", filename: "a.pdf", declared: "text/html", content: "<html><body>hi</body></html>", err: errTypeMismatch},
		{name: "unsupported extension", filename: "a.exe", declared: "application/pdf", content: "MZ", err: errUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detectContentType(strings.NewReader(tt.content), tt.filename, tt.declared)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Expected error %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestContractHandlerSummarize(t *testing.T) {
	summary := &model.StructuredSummary{
		Overview:   "Mutual NDA with a two year term.",
		KeyClauses: []model.KeyClause{{Title: "Term", Text: "Two years", RiskLevel: model.RiskLow}},
		Parties:    []string{"Acme Corp", "contractdesk"},
	}

	tests := []struct {
		name           string
		summarizer     service.Summarizer
		id             string
		expectedStatus int
	}{
		{name: "success", summarizer: &fakeSummarizer{summary: summary}, id: "ctr-1003", expectedStatus: http.StatusOK},
		{name: "missing contract", summarizer: &fakeSummarizer{summary: summary}, id: "ctr-9999", expectedStatus: http.StatusNotFound},
		{
			name:           "provider failure",
			summarizer:     &fakeSummarizer{err: &model.ExternalServiceError{Service: "ai", Err: errors.New("upstream 500")}},
			id:             "ctr-1003",
			expectedStatus: http.StatusBadGateway,
		},
		{name: "summarizer disabled", id: "ctr-1003", expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(o *envOptions) { o.summarizer = tt.summarizer })
			w := env.do(t, "POST", "/api/contracts/"+tt.id+"/summarize", env.token(t, janeEmail), nil)
			expectStatus(t, w, tt.expectedStatus)

			switch tt.expectedStatus {
			case http.StatusOK:
				if !strings.Contains(w.Body.String(), summary.Overview) {
					t.Errorf("Expected summary in response, got %s", w.Body.String())
				}
			case http.StatusBadGateway:
				if body := decode[errorBody](t, w); body.Error != "ai service unavailable" {
					t.Errorf("Expected 'ai service unavailable', got %q", body.Error)
				}
			}
		})
	}
}

// blockingSummarizer holds every call until release is closed
type blockingSummarizer struct {
	started chan struct{}
	release chan struct{}
	summary *model.StructuredSummary
}

func (b *blockingSummarizer) Summarize(ctx context.Context, input service.SummaryInput) (*model.StructuredSummary, error) {
	close(b.started)
	<-b.release
	return b.summary, nil
}

func TestContractHandlerSummarizeClientLeaves(t *testing.T) {
	bs := &blockingSummarizer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		summary: &model.StructuredSummary{Overview: "Statement of work for Q3.", KeyClauses: []model.KeyClause{}, Parties: []string{"Initech"}},
	}
	env := newTestEnv(t, func(o *envOptions) { o.summarizer = bs })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("POST", "/api/contracts/ctr-1003/summarize", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+env.token(t, janeEmail))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(w, req)
		close(done)
	}()

	<-bs.started
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected handler to return once the client left")
	}
	if strings.Contains(w.Body.String(), "Statement of work") {
		t.Error("Expected no summary in the abandoned response")
	}

	// the summary is still stored
	close(bs.release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		contract, err := env.store.Contracts().Get(context.Background(), "ctr-1003")
		if err == nil && contract.Summary != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected summary to be stored after the client left")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
