// internal/app/store/projects/memory.go
package projectstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process project store with the same contract as Store.
// Values are copied on the way in and out so callers never share slices
// with the stored document.
type Memory struct {
	mu         sync.Mutex
	docs       map[primitive.ObjectID]models.Project
	replaceErr error
	replaces   int
	tick       time.Duration
	now        time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[primitive.ObjectID]models.Project),
		now:  time.Now().UTC(),
	}
}

// FailReplace makes every later Replace return err (nil restores normal
// behavior).
func (m *Memory) FailReplace(err error) {
	m.mu.Lock()
	m.replaceErr = err
	m.mu.Unlock()
}

// Replaces counts successful Replace calls.
func (m *Memory) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

// stamp returns a strictly increasing time so update order is observable.
func (m *Memory) stamp() time.Time {
	m.tick += time.Millisecond
	return m.now.Add(m.tick)
}

func (m *Memory) Create(_ context.Context, owner primitive.ObjectID, title, content, language string) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := newProject(owner, title, content, language, m.stamp())
	m.docs[p.ID] = p.Clone()
	return p, nil
}

// Put stores p as-is, for seeding tests.
func (m *Memory) Put(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalize(&p)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = m.stamp()
	}
	m.docs[p.ID] = p.Clone()
}

func (m *Memory) Get(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[id]
	if !ok {
		return models.Project{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) Replace(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	cur, ok := m.docs[p.ID]
	if !ok || cur.Owner != p.Owner {
		return ErrNotFound
	}
	p.UpdatedAt = m.stamp()
	normalize(p)
	m.docs[p.ID] = p.Clone()
	m.replaces++
	return nil
}

func (m *Memory) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Project, error) {
	return m.filter(func(p models.Project) bool { return p.Owner == owner }), nil
}

func (m *Memory) ListForUser(_ context.Context, user primitive.ObjectID) ([]models.Project, error) {
	return m.filter(func(p models.Project) bool { return p.IsMember(user) }), nil
}

func (m *Memory) LatestByOwner(ctx context.Context, owner primitive.ObjectID) (models.Project, error) {
	list, _ := m.ListByOwner(ctx, owner)
	if len(list) == 0 {
		return models.Project{}, ErrNotFound
	}
	return list[0], nil
}

func (m *Memory) ListVideoActive(_ context.Context) ([]models.Project, error) {
	return m.filter(func(p models.Project) bool { return p.VideoSessionActive }), nil
}

func (m *Memory) SaveContent(_ context.Context, id primitive.ObjectID, upd ContentUpdate) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[id]
	if !ok {
		return models.Project{}, ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Language != nil {
		p.Language = *upd.Language
	}
	p.UpdatedAt = m.stamp()
	m.docs[id] = p.Clone()
	return p.Clone(), nil
}

func (m *Memory) filter(keep func(models.Project) bool) []models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Project{}
	for _, p := range m.docs {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}
