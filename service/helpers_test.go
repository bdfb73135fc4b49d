package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
)

var (
	adminIdentity = &model.Identity{ID: "admin@contractdesk.local", Email: "admin@contractdesk.local", Role: model.RoleAdmin}
	userIdentity  = &model.Identity{ID: "jane.doe@contractdesk.local", Email: "jane.doe@contractdesk.local", Role: model.RoleUser}
	otherIdentity = &model.Identity{ID: "john.smith@contractdesk.local", Email: "john.smith@contractdesk.local", Role: model.RoleUser}
)

// actorFor returns a loaded session for identity; nil identity means anonymous
func actorFor(t *testing.T, identity *model.Identity) *session.Context {
	t.Helper()
	s := session.New(nil)
	err := s.Initialize(context.Background(), func(ctx context.Context) (*model.Identity, error) {
		return identity, nil
	})
	if err != nil {
		t.Fatalf("Failed to initialize session: %v", err)
	}
	return s
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	if err := s.InitializeOnce(context.Background()); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return s
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = buf.Bytes()
	return nil
}

func (f *fakeStorage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[objectName]; !ok {
		return "", errors.New("no such object")
	}
	return "https://files.test/" + objectName + "?sig=x", nil
}

func (f *fakeStorage) Delete(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	f.deleted = append(f.deleted, objectName)
	return nil
}

type fakeSummarizer struct {
	summary *model.StructuredSummary
	err     error
	inputs  []SummaryInput
}

func (f *fakeSummarizer) Summarize(ctx context.Context, input SummaryInput) (*model.StructuredSummary, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

var errStoreDown = errors.New("store unavailable")

// flakyLatency fails exactly one wait once armed with failAfter
type flakyLatency struct {
	mu     sync.Mutex
	failIn int
}

// failAfter lets the next n waits pass and fails the one after
func (l *flakyLatency) failAfter(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failIn = n + 1
}

func (l *flakyLatency) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failIn > 0 {
		l.failIn--
		if l.failIn == 0 {
			return errStoreDown
		}
	}
	return ctx.Err()
}

func flakyStore(t *testing.T) (*store.Store, *flakyLatency) {
	t.Helper()
	latency := &flakyLatency{}
	s := store.New(store.WithLatency(latency))
	if err := s.InitializeOnce(context.Background()); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return s, latency
}
