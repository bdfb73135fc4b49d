package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the initial content of a store
type SeedData struct {
	Contracts []model.Contract
	Templates []model.ContractTemplate
	Reviews   []model.Review
	Tasks     []model.TaskItem
}

type seedFile struct {
	Contracts []struct {
		ID         string    `yaml:"id"`
		Name       string    `yaml:"name"`
		UploadedBy string    `yaml:"uploaded_by"`
		UploadedAt time.Time `yaml:"uploaded_at"`
		Status     string    `yaml:"status"`
		Summary    string    `yaml:"summary"`
		TemplateID string    `yaml:"template_id"`
	} `yaml:"contracts"`
	Templates []struct {
		ID         string    `yaml:"id"`
		Name       string    `yaml:"name"`
		Content    string    `yaml:"content"`
		CreatedBy  string    `yaml:"created_by"`
		CreateDate time.Time `yaml:"create_date"`
	} `yaml:"templates"`
	Reviews []struct {
		ID          string     `yaml:"id"`
		ContractID  string     `yaml:"contract_id"`
		Status      string     `yaml:"status"`
		Reviewer    string     `yaml:"reviewer"`
		SubmittedAt time.Time  `yaml:"submitted_at"`
		CompletedAt *time.Time `yaml:"completed_at"`
		Comments    string     `yaml:"comments"`
	} `yaml:"reviews"`
	Tasks []struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Due         model.Due `yaml:"due"`
		Priority    string    `yaml:"priority"`
		Link        string    `yaml:"link"`
		Type        string    `yaml:"type"`
		Status      string    `yaml:"status"`
		Assignee    string    `yaml:"assignee"`
		Description string    `yaml:"description"`
	} `yaml:"tasks"`
}

// DefaultSeed returns the demo data shipped with the binary
func DefaultSeed() (*SeedData, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed decodes seed YAML. Enumerated fields are validated and reviews
// pick up the name of the contract they reference.
func ParseSeed(data []byte) (*SeedData, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	seed := &SeedData{}
	names := make(map[string]string, len(f.Contracts))
	for _, c := range f.Contracts {
		status, err := model.ParseContractStatus(c.Status)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", c.ID, err)
		}
		contract := model.Contract{
			ID:         c.ID,
			Name:       c.Name,
			UploadedBy: c.UploadedBy,
			UploadedAt: c.UploadedAt,
			Status:     status,
			TemplateID: c.TemplateID,
		}
		if c.Summary != "" {
			s := model.NewTextSummary(c.Summary)
			contract.Summary = &s
		}
		names[c.ID] = c.Name
		seed.Contracts = append(seed.Contracts, contract)
	}

	for _, t := range f.Templates {
		seed.Templates = append(seed.Templates, model.ContractTemplate{
			ID:         t.ID,
			Name:       t.Name,
			Content:    t.Content,
			CreatedBy:  t.CreatedBy,
			CreateDate: t.CreateDate,
		})
	}

	for _, r := range f.Reviews {
		status, err := model.ParseReviewStatus(r.Status)
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", r.ID, err)
		}
		name, ok := names[r.ContractID]
		if !ok {
			return nil, fmt.Errorf("review %s references unknown contract %s", r.ID, r.ContractID)
		}
		seed.Reviews = append(seed.Reviews, model.Review{
			ID:           r.ID,
			ContractID:   r.ContractID,
			ContractName: name,
			Status:       status,
			Reviewer:     r.Reviewer,
			SubmittedAt:  r.SubmittedAt,
			CompletedAt:  r.CompletedAt,
			Comments:     r.Comments,
		})
	}

	for _, t := range f.Tasks {
		priority, err := model.ParsePriority(t.Priority)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		typ, err := model.ParseTaskType(t.Type)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		status, err := model.ParseTaskStatus(t.Status)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		seed.Tasks = append(seed.Tasks, model.TaskItem{
			ID:          t.ID,
			Title:       t.Title,
			Due:         t.Due,
			Priority:    priority,
			Link:        t.Link,
			Type:        typ,
			Status:      status,
			Assignee:    t.Assignee,
			Description: t.Description,
		})
	}

	return seed, nil
}

// load inserts seed into empty collections. On failure every collection is
// emptied again so a later attempt starts clean.
func (s *Store) load(ctx context.Context, seed *SeedData) (err error) {
	defer func() {
		if err != nil {
			s.contracts.reset()
			s.templates.reset()
			s.reviews.reset()
			s.tasks.reset()
		}
	}()

	for _, c := range seed.Contracts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.contracts.insert(c); err != nil {
			return err
		}
	}
	for _, t := range seed.Templates {
		if _, err := s.templates.insert(t); err != nil {
			return err
		}
	}
	for _, r := range seed.Reviews {
		if _, err := s.reviews.insert(r); err != nil {
			return err
		}
	}
	for _, t := range seed.Tasks {
		if _, err := s.tasks.insert(t); err != nil {
			return err
		}
	}
	return ctx.Err()
}
