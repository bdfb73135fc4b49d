// Package store is the in-process stand-in for the contract database. It keeps
// the shape of a remote persistence API: every call is latent, cancellable and
// may fail.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Collection names
const (
	CollectionContracts = "contracts"
	CollectionTemplates = "templates"
	CollectionReviews   = "reviews"
	CollectionTasks     = "tasks"
)

// env is shared by every collection of a store
type env struct {
	latency     Latency
	observer    Observer
	now         func() time.Time
	newID       func() string
	maxRecords  int
	closed      atomic.Bool
	ensureReady func(ctx context.Context) error
}

// Option configures a Store
type Option func(*options)

type options struct {
	latency    Latency
	observer   Observer
	now        func() time.Time
	newID      func() string
	maxRecords int
	seed       *SeedData
}

// WithLatency sets the simulated latency applied to every operation
func WithLatency(l Latency) Option {
	return func(o *options) { o.latency = l }
}

// WithObserver reports every operation to obs
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock overrides time.Now for server-assigned timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides uuid generation for new entities
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// WithMaxRecords caps every collection, evicting the oldest entities. 0 means unlimited.
func WithMaxRecords(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRecords = n
	}
}

// WithSeed replaces the embedded seed data. An empty SeedData starts with empty collections.
func WithSeed(seed *SeedData) Option {
	return func(o *options) { o.seed = seed }
}

// Store owns the entity collections for the lifetime of the process
type Store struct {
	env       *env
	seed      *SeedData
	initGroup singleflight.Group
	ready     atomic.Bool
	seeded    atomic.Int32

	contracts *Collection[model.Contract, *model.Contract]
	templates *Collection[model.ContractTemplate, *model.ContractTemplate]
	reviews   *Collection[model.Review, *model.Review]
	tasks     *Collection[model.TaskItem, *model.TaskItem]
}

// New builds an unseeded store. The first operation, or an explicit call to
// InitializeOnce, seeds it.
func New(opts ...Option) *Store {
	o := options{
		latency:  NoLatency,
		observer: nopObserver{},
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{seed: o.seed}
	s.env = &env{
		latency:     o.latency,
		observer:    o.observer,
		now:         o.now,
		newID:       o.newID,
		maxRecords:  o.maxRecords,
		ensureReady: s.InitializeOnce,
	}

	s.contracts = newCollection[model.Contract, *model.Contract](CollectionContracts, s.env, validateContract)
	s.templates = newCollection[model.ContractTemplate, *model.ContractTemplate](CollectionTemplates, s.env, nil)
	s.reviews = newCollection[model.Review, *model.Review](CollectionReviews, s.env, validateReview)
	s.tasks = newCollection[model.TaskItem, *model.TaskItem](CollectionTasks, s.env, nil)
	return s
}

func (s *Store) Contracts() *Collection[model.Contract, *model.Contract] { return s.contracts }

func (s *Store) Templates() *Collection[model.ContractTemplate, *model.ContractTemplate] {
	return s.templates
}

func (s *Store) Reviews() *Collection[model.Review, *model.Review] { return s.reviews }

func (s *Store) Tasks() *Collection[model.TaskItem, *model.TaskItem] { return s.tasks }

// InitializeOnce seeds the collections. Concurrent callers share a single
// seeding pass; once it succeeded later calls return immediately. A failed
// pass leaves the store unseeded so the next call retries.
func (s *Store) InitializeOnce(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if s.env.closed.Load() {
		return model.ErrStoreClosed
	}

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		if s.ready.Load() {
			return nil, nil
		}
		seed := s.seed
		if seed == nil {
			var err error
			seed, err = DefaultSeed()
			if err != nil {
				return nil, err
			}
		}
		if err := s.load(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed store: %w", err)
		}
		s.seeded.Add(1)
		s.ready.Store(true)
		slog.Info("store initialized",
			"contracts", s.contracts.Count(),
			"templates", s.templates.Count(),
			"reviews", s.reviews.Count(),
			"tasks", s.tasks.Count(),
		)
		return nil, nil
	})
	return err
}

// Ready reports whether the store has been seeded and not yet closed
func (s *Store) Ready() bool {
	return s.ready.Load() && !s.env.closed.Load()
}

// SeedPasses returns how many seeding passes completed
func (s *Store) SeedPasses() int {
	return int(s.seeded.Load())
}

// Close disposes the store. Operations started afterwards fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.env.closed.Store(true)
	return nil
}

func validateContract(c model.Contract) error {
	verr := &model.ValidationError{}
	if _, err := model.ParseContractStatus(string(c.Status)); err != nil {
		verr.Add("status", "is invalid")
	}
	if c.Name == "" {
		verr.Add("name", "is required")
	}
	return verr.OrNil()
}

func validateReview(r model.Review) error {
	verr := &model.ValidationError{}
	if r.ContractID == "" {
		verr.Add("contract_id", "is required")
	}
	if _, err := model.ParseReviewStatus(string(r.Status)); err != nil {
		verr.Add("status", "is invalid")
	}
	return verr.OrNil()
}
