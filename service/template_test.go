package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
)

func TestTemplateCreate(t *testing.T) {
	st := store.New(store.WithSeed(&store.SeedData{}))
	svc := NewTemplateService(st)
	admin := actorFor(t, adminIdentity)

	_, err := svc.Create(context.Background(), admin, TemplateInput{Name: "ab", Content: "1234567890"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Errorf("Expected name field error, got %v", verr.Fields)
	}
	if st.Templates().Count() != 0 {
		t.Error("Expected invalid template never to reach the store")
	}

	tpl, err := svc.Create(context.Background(), admin, TemplateInput{Name: "abc", Content: "1234567890"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tpl.ID == "" {
		t.Error("Expected a fresh id")
	}
	if !tpl.CreateDate.Equal(tpl.LastModified) {
		t.Errorf("Expected CreateDate == LastModified, got %v and %v", tpl.CreateDate, tpl.LastModified)
	}
	if tpl.CreatedBy != adminIdentity.Email {
		t.Errorf("Expected created_by %s, got %s", adminIdentity.Email, tpl.CreatedBy)
	}
}

func TestTemplateInputValidation(t *testing.T) {
	tests := []struct {
		name   string
		input  TemplateInput
		fields []string
	}{
		{"valid", TemplateInput{Name: "abc", Content: "1234567890"}, nil},
		{"short content", TemplateInput{Name: "abc", Content: "123456789"}, []string{"content"}},
		{"both short", TemplateInput{Name: "", Content: ""}, []string{"name", "content"}},
		{"multibyte name counts characters", TemplateInput{Name: "äöü", Content: "1234567890"}, nil},
		{"multibyte content counts characters", TemplateInput{Name: "abc", Content: "契約書契約書契約書"}, []string{"content"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("Expected error on %s, got %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestTemplateCreateRequiresAdmin(t *testing.T) {
	st := store.New(store.WithSeed(&store.SeedData{}))
	svc := NewTemplateService(st)
	valid := TemplateInput{Name: "abc", Content: "1234567890"}

	tests := []struct {
		name  string
		actor *session.Context
	}{
		{"user", actorFor(t, userIdentity)},
		{"anonymous", actorFor(t, nil)},
		{"no session", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.actor, valid)
			if !model.IsAuthorization(err) {
				t.Errorf("Expected AuthorizationError, got %v", err)
			}
		})
	}

	// authorization is checked before validation
	_, err := svc.Create(context.Background(), actorFor(t, userIdentity), TemplateInput{Name: "a"})
	if !model.IsAuthorization(err) {
		t.Errorf("Expected AuthorizationError for invalid input too, got %v", err)
	}

	if st.Ready() {
		t.Error("Expected denied calls never to touch the store")
	}
}

func TestTemplateCreateWhileLoading(t *testing.T) {
	svc := NewTemplateService(store.New())
	_, err := svc.Create(context.Background(), session.New(nil), TemplateInput{Name: "abc", Content: "1234567890"})
	if !errors.Is(err, model.ErrSessionLoading) {
		t.Errorf("Expected ErrSessionLoading, got %v", err)
	}
}

func TestTemplateSanitizesContent(t *testing.T) {
	svc := NewTemplateService(store.New(store.WithSeed(&store.SeedData{})))
	admin := actorFor(t, adminIdentity)

	tpl, err := svc.Create(context.Background(), admin, TemplateInput{
		Name:    "Consulting",
		Content: `<p>Consultant shall deliver</p><script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Contains(tpl.Content, "script") {
		t.Errorf("Expected script to be stripped, got %q", tpl.Content)
	}
	if !strings.Contains(tpl.Content, "<p>Consultant shall deliver</p>") {
		t.Errorf("Expected formatting to survive, got %q", tpl.Content)
	}

	_, err = svc.Create(context.Background(), admin, TemplateInput{
		Name:    "Empty",
		Content: `<script>alert("xss")</script>`,
	})
	if !model.IsValidation(err) {
		t.Errorf("Expected content made only of markup to fail validation, got %v", err)
	}
}

func TestTemplateReplace(t *testing.T) {
	st := seededStore(t)
	svc := NewTemplateService(st)
	admin := actorFor(t, adminIdentity)
	ctx := context.Background()

	before, _ := svc.Get(ctx, "tpl-nda")
	tpl, err := svc.Replace(ctx, admin, "tpl-nda", TemplateInput{Name: "NDA v2", Content: "Replaced body text"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tpl.Name != "NDA v2" || tpl.Content != "Replaced body text" {
		t.Errorf("Expected name and content replaced, got %+v", tpl)
	}
	if tpl.Version != before.Version+1 {
		t.Errorf("Expected version %d, got %d", before.Version+1, tpl.Version)
	}
	if !tpl.CreateDate.Equal(before.CreateDate) {
		t.Error("Expected CreateDate to be kept")
	}

	if _, err := svc.Replace(ctx, admin, "missing", TemplateInput{Name: "abc", Content: "1234567890"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Replace(ctx, actorFor(t, userIdentity), "tpl-nda", TemplateInput{Name: "abc", Content: "1234567890"}); !model.IsAuthorization(err) {
		t.Errorf("Expected AuthorizationError, got %v", err)
	}
}
