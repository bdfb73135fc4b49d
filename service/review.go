package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
)

// ReviewDecision completes a pending review
type ReviewDecision struct {
	Status   model.ReviewStatus `json:"status" validate:"required,oneof=approved rejected"`
	Comments string             `json:"comments" validate:"max=5000"`
}

type ReviewService struct {
	store *store.Store
	now   func() time.Time
}

func NewReviewService(s *store.Store) *ReviewService {
	return &ReviewService{store: s, now: time.Now}
}

// List returns reviews, optionally only those in status
func (s *ReviewService) List(ctx context.Context, status model.ReviewStatus) ([]model.Review, error) {
	var filter func(model.Review) bool
	if status != "" {
		filter = func(r model.Review) bool { return r.Status == status }
	}
	return s.store.Reviews().List(ctx, filter)
}

func (s *ReviewService) Get(ctx context.Context, id string) (model.Review, error) {
	return s.store.Reviews().Get(ctx, id)
}

// Complete records the decision on a pending review and moves its contract
// to active (approved) or rejected.
func (s *ReviewService) Complete(ctx context.Context, actor *session.Context, id string, d ReviewDecision) (model.Review, error) {
	identity, err := signedIn(actor, "complete reviews")
	if err != nil {
		return model.Review{}, err
	}
	if err := validateStruct(d); err != nil {
		return model.Review{}, err
	}
	next, _ := d.Status.ContractStatus()
	comments := sanitize(d.Comments)

	current, err := s.store.Reviews().Get(ctx, id)
	if err != nil {
		return model.Review{}, err
	}
	if current.Status != model.ReviewPending {
		return model.Review{}, model.NewValidationError("status", "review is already "+string(current.Status))
	}

	// the contract moves first so a failed transition leaves the review pending
	var previous model.ContractStatus
	if _, err := s.store.Contracts().Update(ctx, current.ContractID, func(c *model.Contract) error {
		if !c.Status.CanTransition(next) {
			return model.NewValidationError("status",
				fmt.Sprintf("contract is %s and cannot become %s", c.Status, next))
		}
		previous = c.Status
		c.Status = next
		return nil
	}); err != nil {
		return model.Review{}, err
	}

	completedAt := s.now()
	review, err := s.store.Reviews().UpdateVersion(ctx, id, current.Version, func(r *model.Review) error {
		r.Status = d.Status
		r.Reviewer = identity.Email
		r.Comments = comments
		r.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		s.restoreContract(ctx, current.ContractID, next, previous)
		return model.Review{}, err
	}
	logger.Info(ctx, "review completed", "review_id", id, "contract_id", review.ContractID, "status", review.Status)
	return review, nil
}

// restoreContract puts the contract back to previous after the review could
// not be recorded, so the review can be completed again. A contract that has
// moved on since is left alone.
func (s *ReviewService) restoreContract(ctx context.Context, contractID string, next, previous model.ContractStatus) {
	_, err := s.store.Contracts().Update(context.WithoutCancel(ctx), contractID, func(c *model.Contract) error {
		if c.Status != next {
			return model.ErrConflict
		}
		c.Status = previous
		return nil
	})
	if err != nil {
		logger.Error(ctx, "failed to restore contract status", "contract_id", contractID, "status", previous, "error", err)
	}
}
