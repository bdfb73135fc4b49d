package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/contractdesk/model"
)

// Entity is the set of methods a model type must provide to live in a Collection.
// It is satisfied by the pointer to the stored value type.
type Entity[T any] interface {
	*T
	GetID() string
	SetID(id string)
	GetVersion() int64
	SetVersion(v int64)
	CreatedAt() time.Time
	Stamp(now time.Time, created bool)
	Clone() T
}

type record[T any] struct {
	value T
	seq   uint64
}

// Collection is an in-memory table of one entity type.
// Values are cloned on the way in and on the way out.
type Collection[T any, P Entity[T]] struct {
	name       string
	env        *env
	mu         sync.RWMutex
	records    map[string]*record[T]
	nextSeq    uint64
	maxRecords int
	validate   func(T) error
}

func newCollection[T any, P Entity[T]](name string, e *env, validate func(T) error) *Collection[T, P] {
	return &Collection[T, P]{
		name:       name,
		env:        e,
		records:    make(map[string]*record[T]),
		maxRecords: e.maxRecords,
		validate:   validate,
	}
}

// Name returns the collection name
func (c *Collection[T, P]) Name() string {
	return c.name
}

// run waits out the simulated latency, makes sure the store is seeded and
// reports the outcome to the observer
func (c *Collection[T, P]) run(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := c.exec(ctx, fn)
	c.env.observer.ObserveOp(c.name, op, err, time.Since(start))
	return err
}

func (c *Collection[T, P]) exec(ctx context.Context, fn func() error) error {
	if c.env.closed.Load() {
		return model.ErrStoreClosed
	}
	if err := c.env.ensureReady(ctx); err != nil {
		return err
	}
	if err := c.env.latency.Wait(ctx); err != nil {
		return err
	}
	// the store may have been disposed while this call was suspended
	if c.env.closed.Load() {
		return model.ErrStoreClosed
	}
	return fn()
}

// Create stores a copy of v. An empty id is replaced with a fresh uuid.
// v itself is never modified.
func (c *Collection[T, P]) Create(ctx context.Context, v T) (T, error) {
	var out T
	err := c.run(ctx, "create", func() error {
		created, err := c.insert(v)
		out = created
		return err
	})
	return out, err
}

// insert performs the create without latency; seeding goes through here
func (c *Collection[T, P]) insert(v T) (T, error) {
	var zero T
	rec := P(&v).Clone()
	p := P(&rec)
	if p.GetID() == "" {
		p.SetID(c.env.newID())
	}
	if c.validate != nil {
		if err := c.validate(rec); err != nil {
			return zero, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.GetID()
	if _, exists := c.records[id]; exists {
		return zero, fmt.Errorf("%s %q already exists: %w", c.name, id, model.ErrConflict)
	}
	p.Stamp(c.env.now(), true)
	p.SetVersion(1)
	c.nextSeq++
	c.records[id] = &record[T]{value: rec, seq: c.nextSeq}
	c.cleanupIfNeeded()

	return p.Clone(), nil
}

// Read returns the entity with id. A missing entity is reported with ok=false, not an error.
func (c *Collection[T, P]) Read(ctx context.Context, id string) (T, bool, error) {
	var (
		out T
		ok  bool
	)
	err := c.run(ctx, "read", func() error {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if r, exists := c.records[id]; exists {
			out = P(&r.value).Clone()
			ok = true
		}
		return nil
	})
	return out, ok, err
}

// Get is Read with a missing entity reported as ErrNotFound
func (c *Collection[T, P]) Get(ctx context.Context, id string) (T, error) {
	v, ok, err := c.Read(ctx, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, model.NotFoundError(c.name, id)
	}
	return v, nil
}

// Update applies patch to a copy of the stored entity and saves it, last write wins.
// patch runs while the collection is locked and must not call back into the store.
func (c *Collection[T, P]) Update(ctx context.Context, id string, patch func(P) error) (T, error) {
	var out T
	err := c.run(ctx, "update", func() error {
		updated, err := c.apply(id, -1, patch)
		out = updated
		return err
	})
	return out, err
}

// UpdateVersion is Update guarded by the version the caller last saw.
// It fails with ErrConflict when the stored entity has moved on.
func (c *Collection[T, P]) UpdateVersion(ctx context.Context, id string, expected int64, patch func(P) error) (T, error) {
	var out T
	err := c.run(ctx, "update", func() error {
		updated, err := c.apply(id, expected, patch)
		out = updated
		return err
	})
	return out, err
}

func (c *Collection[T, P]) apply(id string, expected int64, patch func(P) error) (T, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.records[id]
	if !exists {
		return zero, model.NotFoundError(c.name, id)
	}
	current := P(&r.value)
	if expected >= 0 && current.GetVersion() != expected {
		return zero, fmt.Errorf("%s %q at version %d, expected %d: %w",
			c.name, id, current.GetVersion(), expected, model.ErrConflict)
	}

	working := current.Clone()
	p := P(&working)
	if err := patch(p); err != nil {
		return zero, err
	}
	p.SetID(id)
	if c.validate != nil {
		if err := c.validate(working); err != nil {
			return zero, err
		}
	}
	p.Stamp(c.env.now(), false)
	p.SetVersion(current.GetVersion() + 1)
	r.value = working

	return p.Clone(), nil
}

// Delete removes the entity with id
func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	return c.run(ctx, "delete", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, exists := c.records[id]; !exists {
			return model.NotFoundError(c.name, id)
		}
		delete(c.records, id)
		return nil
	})
}

// List returns the entities accepted by filter, oldest first. A nil filter accepts everything.
func (c *Collection[T, P]) List(ctx context.Context, filter func(T) bool) ([]T, error) {
	var out []T
	err := c.run(ctx, "list", func() error {
		c.mu.RLock()
		recs := make([]*record[T], 0, len(c.records))
		for _, r := range c.records {
			if filter == nil || filter(r.value) {
				recs = append(recs, r)
			}
		}
		sortRecords[T, P](recs)
		out = make([]T, len(recs))
		for i, r := range recs {
			out[i] = P(&r.value).Clone()
		}
		c.mu.RUnlock()
		return nil
	})
	return out, err
}

// Count returns the number of stored entities
func (c *Collection[T, P]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// cleanupIfNeeded drops the oldest entities once the collection exceeds maxRecords.
// Must be called with lock held
func (c *Collection[T, P]) cleanupIfNeeded() {
	if c.maxRecords <= 0 || len(c.records) <= c.maxRecords {
		return
	}

	recs := make([]*record[T], 0, len(c.records))
	for _, r := range c.records {
		recs = append(recs, r)
	}
	sortRecords[T, P](recs)

	removeCount := len(recs) - c.maxRecords
	for i := 0; i < removeCount; i++ {
		p := P(&recs[i].value)
		slog.Info("auto-cleaning old record",
			"collection", c.name,
			"id", p.GetID(),
			"created_at", p.CreatedAt(),
		)
		delete(c.records, p.GetID())
	}
}

func sortRecords[T any, P Entity[T]](recs []*record[T]) {
	sort.Slice(recs, func(i, j int) bool {
		ci, cj := P(&recs[i].value).CreatedAt(), P(&recs[j].value).CreatedAt()
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return recs[i].seq < recs[j].seq
	})
}

func (c *Collection[T, P]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]*record[T])
	c.nextSeq = 0
}
