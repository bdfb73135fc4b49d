package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
	"github.com/google/uuid"
)

// ErrStorageDisabled is returned by uploads when no file storage is configured
var ErrStorageDisabled = errors.New("file storage is not configured")

// ContractInput creates a contract by hand or from a template
type ContractInput struct {
	Name       string `json:"name" validate:"required,max=200"`
	TemplateID string `json:"template_id"`
}

// ContractPatch changes name and/or status. A non-nil Version turns the
// update into a version-checked one.
type ContractPatch struct {
	Name    *string               `json:"name" validate:"omitempty,min=1,max=200"`
	Status  *model.ContractStatus `json:"status"`
	Version *int64                `json:"version"`
}

// Upload is a contract document received from a client
type Upload struct {
	Name        string
	Filename    string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// ContractView is a contract plus a download link for its document
type ContractView struct {
	model.Contract
	DownloadURL string `json:"download_url,omitempty"`
}

type ContractService struct {
	store      *store.Store
	files      FileStorage
	summarizer Summarizer
}

// NewContractService wires the contract operations. files and summarizer may
// be nil when those integrations are not configured.
func NewContractService(s *store.Store, files FileStorage, summarizer Summarizer) *ContractService {
	return &ContractService{store: s, files: files, summarizer: summarizer}
}

// Create adds a draft contract owned by the actor
func (s *ContractService) Create(ctx context.Context, actor *session.Context, in ContractInput) (model.Contract, error) {
	identity, err := signedIn(actor, "create contracts")
	if err != nil {
		return model.Contract{}, err
	}
	if err := validateStruct(in); err != nil {
		return model.Contract{}, err
	}
	if in.TemplateID != "" {
		if _, ok, err := s.store.Templates().Read(ctx, in.TemplateID); err != nil {
			return model.Contract{}, err
		} else if !ok {
			return model.Contract{}, model.NewValidationError("template_id", "does not exist")
		}
	}

	c, err := s.store.Contracts().Create(ctx, model.Contract{
		Name:       in.Name,
		UploadedBy: identity.Email,
		Status:     model.StatusDraft,
		TemplateID: in.TemplateID,
	})
	if err != nil {
		return model.Contract{}, err
	}
	logger.Info(ctx, "contract created", "contract_id", c.ID, "template_id", c.TemplateID)
	return c, nil
}

// Upload stores the document in file storage and creates a draft contract for it
func (s *ContractService) Upload(ctx context.Context, actor *session.Context, up Upload) (model.Contract, error) {
	identity, err := signedIn(actor, "upload contracts")
	if err != nil {
		return model.Contract{}, err
	}
	if s.files == nil {
		return model.Contract{}, &model.ExternalServiceError{Service: "storage", Err: ErrStorageDisabled}
	}

	name := up.Name
	if name == "" {
		name = up.Filename
	}
	if err := validateStruct(ContractInput{Name: name}); err != nil {
		return model.Contract{}, err
	}

	id := uuid.New().String()
	objectName := ObjectName(id, filepath.Base(up.Filename))
	if err := s.files.Upload(ctx, objectName, up.Reader, up.Size, up.ContentType); err != nil {
		logger.Error(ctx, "upload to storage failed", "object", objectName, "error", err)
		return model.Contract{}, &model.ExternalServiceError{Service: "storage", Err: err}
	}

	c, err := s.store.Contracts().Create(ctx, model.Contract{
		ID:         id,
		Name:       name,
		UploadedBy: identity.Email,
		Status:     model.StatusDraft,
		FileRef:    objectName,
	})
	if err != nil {
		if derr := s.files.Delete(context.WithoutCancel(ctx), objectName); derr != nil {
			logger.Warn(ctx, "failed to remove orphaned upload", "object", objectName, "error", derr)
		}
		return model.Contract{}, err
	}
	logger.Info(ctx, "contract uploaded", "contract_id", c.ID, "object", objectName, "size", up.Size)
	return c, nil
}

// Get returns a contract with a presigned link to its document, if it has one
func (s *ContractService) Get(ctx context.Context, id string) (ContractView, error) {
	c, err := s.store.Contracts().Get(ctx, id)
	if err != nil {
		return ContractView{}, err
	}
	view := ContractView{Contract: c}
	if c.FileRef != "" && s.files != nil {
		url, err := s.files.PresignedURL(ctx, c.FileRef)
		if err != nil {
			logger.Warn(ctx, "failed to presign contract document", "contract_id", id, "error", err)
		} else {
			view.DownloadURL = url
		}
	}
	return view, nil
}

// List returns contracts, optionally only those in status
func (s *ContractService) List(ctx context.Context, status model.ContractStatus) ([]model.Contract, error) {
	var filter func(model.Contract) bool
	if status != "" {
		filter = func(c model.Contract) bool { return c.Status == status }
	}
	return s.store.Contracts().List(ctx, filter)
}

// Update renames a contract and/or moves it to another status
func (s *ContractService) Update(ctx context.Context, actor *session.Context, id string, p ContractPatch) (model.Contract, error) {
	if _, err := signedIn(actor, "update contracts"); err != nil {
		return model.Contract{}, err
	}
	if err := validateStruct(p); err != nil {
		return model.Contract{}, err
	}
	if p.Status != nil {
		if _, err := model.ParseContractStatus(string(*p.Status)); err != nil {
			return model.Contract{}, err
		}
	}

	var withdrawn bool
	patch := func(c *model.Contract) error {
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Status != nil {
			if !c.Status.CanTransition(*p.Status) {
				return model.NewValidationError("status",
					fmt.Sprintf("cannot move from %s to %s", c.Status, *p.Status))
			}
			// approval and rejection happen by completing the open review
			if c.Status == model.StatusPendingReview && (*p.Status == model.StatusActive || *p.Status == model.StatusRejected) {
				return model.NewValidationError("status",
					fmt.Sprintf("complete the open review to move a pending_review contract to %s", *p.Status))
			}
			withdrawn = c.Status == model.StatusPendingReview && *p.Status == model.StatusDraft
			c.Status = *p.Status
		}
		return nil
	}

	var (
		c   model.Contract
		err error
	)
	if p.Version != nil {
		c, err = s.store.Contracts().UpdateVersion(ctx, id, *p.Version, patch)
	} else {
		c, err = s.store.Contracts().Update(ctx, id, patch)
	}
	if err != nil {
		return model.Contract{}, err
	}
	if withdrawn {
		s.dropReviews(ctx, id, true)
	}
	logger.Info(ctx, "contract updated", "contract_id", id, "status", c.Status, "version", c.Version)
	return c, nil
}

// Delete removes a contract and its document. Only the uploader or an admin may delete.
func (s *ContractService) Delete(ctx context.Context, actor *session.Context, id string) error {
	identity, err := signedIn(actor, "delete contracts")
	if err != nil {
		return err
	}
	c, err := s.store.Contracts().Get(ctx, id)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() && c.UploadedBy != identity.Email {
		err := &model.AuthorizationError{Action: "delete contracts uploaded by others", Required: []model.Role{model.RoleAdmin}}
		logger.Warn(ctx, "contract delete denied", "contract_id", id, "error", err)
		return err
	}

	if err := s.store.Contracts().Delete(ctx, id); err != nil {
		return err
	}
	s.dropReviews(ctx, id, false)
	if c.FileRef != "" && s.files != nil {
		if err := s.files.Delete(ctx, c.FileRef); err != nil {
			logger.Warn(ctx, "failed to delete contract document", "contract_id", id, "object", c.FileRef, "error", err)
		}
	}
	logger.Info(ctx, "contract deleted", "contract_id", id)
	return nil
}

// dropReviews deletes the reviews of a contract, or only its pending ones.
// The contract change has already happened, so failures are logged.
func (s *ContractService) dropReviews(ctx context.Context, contractID string, pendingOnly bool) {
	ctx = context.WithoutCancel(ctx)
	reviews, err := s.store.Reviews().List(ctx, func(r model.Review) bool {
		return r.ContractID == contractID && (!pendingOnly || r.Status == model.ReviewPending)
	})
	if err != nil {
		logger.Error(ctx, "failed to list contract reviews", "contract_id", contractID, "error", err)
		return
	}
	for _, r := range reviews {
		if err := s.store.Reviews().Delete(ctx, r.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			logger.Error(ctx, "failed to delete contract review", "contract_id", contractID, "review_id", r.ID, "error", err)
		}
	}
}

// SubmitForReview moves a contract to pending_review and opens a review for it
func (s *ContractService) SubmitForReview(ctx context.Context, actor *session.Context, id string) (model.Review, error) {
	if _, err := signedIn(actor, "submit contracts for review"); err != nil {
		return model.Review{}, err
	}

	var previous model.ContractStatus
	c, err := s.store.Contracts().Update(ctx, id, func(c *model.Contract) error {
		if c.Status == model.StatusPendingReview || !c.Status.CanTransition(model.StatusPendingReview) {
			return model.NewValidationError("status",
				fmt.Sprintf("a %s contract cannot be submitted for review", c.Status))
		}
		previous = c.Status
		c.Status = model.StatusPendingReview
		return nil
	})
	if err != nil {
		return model.Review{}, err
	}

	review, err := s.store.Reviews().Create(ctx, model.Review{
		ContractID:   c.ID,
		ContractName: c.Name,
		Status:       model.ReviewPending,
	})
	if err != nil {
		// put the contract back so it can be submitted again
		if _, rerr := s.store.Contracts().Update(context.WithoutCancel(ctx), id, func(c *model.Contract) error {
			c.Status = previous
			return nil
		}); rerr != nil {
			logger.Error(ctx, "failed to restore contract status", "contract_id", id, "error", rerr)
		}
		return model.Review{}, err
	}
	logger.Info(ctx, "contract submitted for review", "contract_id", id, "review_id", review.ID)
	return review, nil
}

// Summarize asks the summarizer for a structured summary and stores it on the contract
func (s *ContractService) Summarize(ctx context.Context, actor *session.Context, id string) (model.Contract, error) {
	if _, err := signedIn(actor, "summarize contracts"); err != nil {
		return model.Contract{}, err
	}
	if s.summarizer == nil {
		return model.Contract{}, &model.ExternalServiceError{Service: "ai", Err: ErrSummarizerDisabled}
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return model.Contract{}, err
	}
	input := SummaryInput{ContractName: view.Name, DocumentURL: view.DownloadURL}
	if view.TemplateID != "" {
		if tpl, ok, err := s.store.Templates().Read(ctx, view.TemplateID); err == nil && ok {
			input.Content = tpl.Content
		}
	}

	structured, err := s.summarizer.Summarize(ctx, input)
	if err != nil {
		logger.Error(ctx, "summarization failed", "contract_id", id, "error", err)
		return model.Contract{}, err
	}

	summary := model.NewStructuredSummary(*structured)
	c, err := s.store.Contracts().Update(ctx, id, func(c *model.Contract) error {
		c.Summary = &summary
		return nil
	})
	if err != nil {
		return model.Contract{}, err
	}
	logger.Info(ctx, "contract summarized", "contract_id", id, "clauses", len(structured.KeyClauses))
	return c, nil
}
