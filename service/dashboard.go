package service

import (
	"context"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/store"
)

// Dashboard is the landing page overview
type Dashboard struct {
	ContractsByStatus map[model.ContractStatus]int `json:"contracts_by_status"`
	TotalContracts    int                          `json:"total_contracts"`
	PendingReviews    []model.Review               `json:"pending_reviews"`
	OpenTasks         []model.TaskItem             `json:"open_tasks"`
	OverdueTasks      int                          `json:"overdue_tasks"`
	Templates         int                          `json:"templates"`
}

type DashboardService struct {
	store *store.Store
	now   func() time.Time
}

func NewDashboardService(s *store.Store) *DashboardService {
	return &DashboardService{store: s, now: time.Now}
}

// Get collects the overview. A task counts as overdue when marked so or
// when its absolute due time has passed while it is still open.
func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	contracts, err := s.store.Contracts().List(ctx, nil)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.Reviews().List(ctx, func(r model.Review) bool {
		return r.Status == model.ReviewPending
	})
	if err != nil {
		return nil, err
	}
	open, err := s.store.Tasks().List(ctx, func(t model.TaskItem) bool {
		return t.Status.Open()
	})
	if err != nil {
		return nil, err
	}
	templates, err := s.store.Templates().List(ctx, nil)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		ContractsByStatus: make(map[model.ContractStatus]int, len(model.ContractStatuses)),
		TotalContracts:    len(contracts),
		PendingReviews:    pending,
		OpenTasks:         open,
		Templates:         len(templates),
	}
	for _, st := range model.ContractStatuses {
		d.ContractsByStatus[st] = 0
	}
	for _, c := range contracts {
		d.ContractsByStatus[c.Status]++
	}

	now := s.now()
	for _, t := range open {
		if t.Status == model.TaskOverdue || t.Due.PastDue(now) {
			d.OverdueTasks++
		}
	}
	return d, nil
}
