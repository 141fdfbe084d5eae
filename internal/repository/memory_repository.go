package repository

import (
	"context"
	"sort"
	"sync"

	"site_registry/internal/domain"
)

// MemorySiteRepo keeps sites in process memory. Callers never share
// state with stored records.
type MemorySiteRepo struct {
	mu    sync.RWMutex
	sites map[int]domain.Site
}

// NewMemorySiteRepo creates an empty in-memory site repository
func NewMemorySiteRepo() *MemorySiteRepo {
	return &MemorySiteRepo{sites: make(map[int]domain.Site)}
}

func (r *MemorySiteRepo) List(_ context.Context, filter domain.SiteFilter) ([]domain.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Site, 0, len(r.sites))
	for _, s := range r.sites {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemorySiteRepo) Get(_ context.Context, id int) (domain.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemorySiteRepo) MaxID(_ context.Context) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max, ok := 0, false
	for id := range r.sites {
		if !ok || id > max {
			max, ok = id, true
		}
	}
	return max, ok, nil
}

func (r *MemorySiteRepo) Insert(_ context.Context, site domain.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sites[site.ID]; exists {
		return domain.ErrDuplicateID
	}
	r.sites[site.ID] = site.Clone()
	return nil
}

func (r *MemorySiteRepo) Replace(_ context.Context, site domain.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sites[site.ID]; !exists {
		return domain.ErrNotFound
	}
	r.sites[site.ID] = site.Clone()
	return nil
}

func (r *MemorySiteRepo) Delete(_ context.Context, id int) (domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrNotFound
	}
	delete(r.sites, id)
	return s, nil
}

func (r *MemorySiteRepo) Type() string {
	return "memory"
}

// MemoryUserRepo keeps accounts in process memory
type MemoryUserRepo struct {
	mu     sync.RWMutex
	byName map[string]domain.User
}

// NewMemoryUserRepo creates an empty in-memory user repository
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{byName: make(map[string]domain.User)}
}

func (r *MemoryUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (r *MemoryUserRepo) Insert(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[user.Username]; exists {
		return domain.ErrUserExists
	}
	r.byName[user.Username] = user
	return nil
}

// MemoryEventRepo keeps status history in process memory
type MemoryEventRepo struct {
	mu     sync.RWMutex
	events map[int][]domain.StatusEvent
}

// NewMemoryEventRepo creates an empty in-memory event repository
func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{events: make(map[int][]domain.StatusEvent)}
}

func (r *MemoryEventRepo) Insert(_ context.Context, events []domain.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range events {
		r.events[e.SiteID] = append(r.events[e.SiteID], e)
	}
	return nil
}

func (r *MemoryEventRepo) History(_ context.Context, siteID int, limit int) ([]domain.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.events[siteID]
	out := make([]domain.StatusEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryEventRepo) Type() string {
	return "memory"
}
