package service

import (
	"context"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
)

// TemplateInput is a template form submission. Lengths count characters, not bytes.
type TemplateInput struct {
	Name    string `json:"name" validate:"min=3"`
	Content string `json:"content" validate:"min=10"`
}

// Validate checks the form without touching the store
func (in TemplateInput) Validate() error {
	return validateStruct(in)
}

type TemplateService struct {
	store *store.Store
}

func NewTemplateService(s *store.Store) *TemplateService {
	return &TemplateService{store: s}
}

func (s *TemplateService) List(ctx context.Context) ([]model.ContractTemplate, error) {
	return s.store.Templates().List(ctx, nil)
}

func (s *TemplateService) Get(ctx context.Context, id string) (model.ContractTemplate, error) {
	return s.store.Templates().Get(ctx, id)
}

// Create stores a new template. Only admins may create templates.
func (s *TemplateService) Create(ctx context.Context, actor *session.Context, in TemplateInput) (model.ContractTemplate, error) {
	identity, err := authorize(actor, "create templates", model.RoleAdmin)
	if err != nil {
		logger.Warn(ctx, "template create denied", "error", err)
		return model.ContractTemplate{}, err
	}
	in, err = in.clean()
	if err != nil {
		return model.ContractTemplate{}, err
	}

	tpl, err := s.store.Templates().Create(ctx, model.ContractTemplate{
		Name:      in.Name,
		Content:   in.Content,
		CreatedBy: identity.Email,
	})
	if err != nil {
		return model.ContractTemplate{}, err
	}
	logger.Info(ctx, "template created", "template_id", tpl.ID, "name", tpl.Name)
	return tpl, nil
}

// Replace swaps name and content of a template together. Only admins may replace templates.
func (s *TemplateService) Replace(ctx context.Context, actor *session.Context, id string, in TemplateInput) (model.ContractTemplate, error) {
	if _, err := authorize(actor, "replace templates", model.RoleAdmin); err != nil {
		logger.Warn(ctx, "template replace denied", "template_id", id, "error", err)
		return model.ContractTemplate{}, err
	}
	in, err := in.clean()
	if err != nil {
		return model.ContractTemplate{}, err
	}

	tpl, err := s.store.Templates().Update(ctx, id, func(t *model.ContractTemplate) error {
		t.Name = in.Name
		t.Content = in.Content
		return nil
	})
	if err != nil {
		return model.ContractTemplate{}, err
	}
	logger.Info(ctx, "template replaced", "template_id", tpl.ID, "version", tpl.Version)
	return tpl, nil
}

// clean validates the raw form, then sanitizes the content and checks it is
// still long enough once markup is stripped
func (in TemplateInput) clean() (TemplateInput, error) {
	if err := in.Validate(); err != nil {
		return in, err
	}
	in.Content = sanitize(in.Content)
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// authorize returns the acting identity when it holds one of roles
func authorize(actor *session.Context, action string, roles ...model.Role) (*model.Identity, error) {
	if actor == nil {
		return nil, &model.AuthorizationError{Action: action, Required: roles}
	}
	if err := actor.AuthorizeAction(action, roles...); err != nil {
		return nil, err
	}
	identity, _ := actor.CurrentIdentity()
	return identity, nil
}

// signedIn returns the acting identity whatever its role
func signedIn(actor *session.Context, action string) (*model.Identity, error) {
	return authorize(actor, action, model.RoleAdmin, model.RoleUser)
}
