package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"site_registry/internal/domain"
	"site_registry/internal/repository"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(event domain.StatusEvent) {
	m.Called(event)
}

// failingSiteRepo wraps a memory repo and fails writes on demand
type failingSiteRepo struct {
	*repository.MemorySiteRepo
	insertErr  error
	replaceErr error
}

func (r *failingSiteRepo) Insert(ctx context.Context, site domain.Site) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.MemorySiteRepo.Insert(ctx, site)
}

func (r *failingSiteRepo) Replace(ctx context.Context, site domain.Site) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	return r.MemorySiteRepo.Replace(ctx, site)
}

// blockingListRepo holds List after it has read the store until release is closed
type blockingListRepo struct {
	*repository.MemorySiteRepo
	loaded  chan struct{}
	release chan struct{}
	blocked bool
}

func (r *blockingListRepo) List(ctx context.Context, filter domain.SiteFilter) ([]domain.Site, error) {
	sites, err := r.MemorySiteRepo.List(ctx, filter)
	if !r.blocked {
		r.blocked = true
		close(r.loaded)
		<-r.release
	}
	return sites, err
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSiteService(t *testing.T, recorder EventRecorder) (*SiteService, *repository.MemoryEventRepo, *clock) {
	t.Helper()
	events := repository.NewMemoryEventRepo()
	cache := NewCache(time.Minute)
	t.Cleanup(cache.Close)

	svc := NewSiteService(repository.NewMemorySiteRepo(), events, recorder, cache, time.Minute)
	c := &clock{now: testNow}
	svc.SetClock(c.Now)
	return svc, events, c
}

func TestSiteService_TowerScenario(t *testing.T) {
	ctx := context.Background()
	rec := &mockRecorder{}
	svc, _, c := newTestSiteService(t, rec)

	created, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)
	assert.Equal(t, 2001, created.ID)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.Equal(t, domain.CapacityMedium, created.Capacity)
	assert.Equal(t, "admin", created.CreatedBy)

	fetched, err := svc.Get(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	rec.On("Record", mock.MatchedBy(func(e domain.StatusEvent) bool {
		return e.SiteID == 2001 && e.From == domain.StatusActive && e.To == domain.StatusMaintenance
	})).Once()
	c.Advance(time.Hour)
	paused, err := svc.UpdateStatus(ctx, 2001, "maintenance", "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMaintenance, paused.Status)
	assert.Equal(t, created.LastMaintenance, paused.LastMaintenance)

	rec.On("Record", mock.MatchedBy(func(e domain.StatusEvent) bool {
		return e.From == domain.StatusMaintenance && e.To == domain.StatusActive && e.Actor == "ops"
	})).Once()
	c.Advance(time.Hour)
	resumed, err := svc.UpdateStatus(ctx, 2001, "active", "ops")
	require.NoError(t, err)
	require.NotNil(t, resumed.LastMaintenance)
	assert.Equal(t, c.now, *resumed.LastMaintenance)
	assert.Equal(t, c.now, resumed.UpdatedAt)

	rec.AssertExpectations(t)
}

func TestSiteService_CreateGridWithoutVoltage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSiteService(t, nil)

	raw := towerPayload()
	raw["powerSources"] = []interface{}{"Grid"}
	raw["powerSourceDetails"] = map[string]interface{}{
		"grid": map[string]interface{}{"connectionType": "single_phase", "load": 3.0},
	}

	_, err := svc.Create(ctx, raw, "admin")
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Grid voltage is required"}, messages(verr.Violations))
	assert.ErrorIs(t, err, domain.ErrMissingField)

	_, err = svc.Get(ctx, 2001)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_CreateAssignsIDs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSiteService(t, nil)

	raw := towerPayload()
	delete(raw, "id")

	first, err := svc.Create(ctx, raw, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.FirstSiteID, first.ID)

	second, err := svc.Create(ctx, raw, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.FirstSiteID+1, second.ID)

	explicit := towerPayload()
	explicit["id"] = 5000.0
	_, err = svc.Create(ctx, explicit, "admin")
	require.NoError(t, err)

	third, err := svc.Create(ctx, raw, "admin")
	require.NoError(t, err)
	assert.Equal(t, 5001, third.ID)

	zero := towerPayload()
	zero["id"] = 0.0
	fourth, err := svc.Create(ctx, zero, "admin")
	require.NoError(t, err)
	assert.Equal(t, 5002, fourth.ID)
}

func TestSiteService_CreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSiteService(t, nil)

	_, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	_, err = svc.Create(ctx, towerPayload(), "admin")
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestSiteService_UpdateDeselectionPurges(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestSiteService(t, nil)

	_, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	c.Advance(time.Minute)
	updated, err := svc.Update(ctx, 2001, map[string]interface{}{"powerSources": []interface{}{}}, "admin")
	require.NoError(t, err)
	assert.Nil(t, updated.PowerSourceDetails.Generator)

	stored, err := svc.Get(ctx, 2001)
	require.NoError(t, err)
	assert.Empty(t, stored.PowerSources)
	assert.Nil(t, stored.PowerSourceDetails.Generator)
	assert.Equal(t, c.now, stored.UpdatedAt)
	assert.True(t, !stored.UpdatedAt.Before(stored.CreatedAt))
}

func TestSiteService_RejectedUpdateLeavesRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestSiteService(t, nil)

	created, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)
	c.Advance(time.Minute)

	tests := []struct {
		name string
		raw  map[string]interface{}
		want error
	}{
		{"id change", map[string]interface{}{"id": 7.0}, domain.ErrImmutableField},
		{"blank name", map[string]interface{}{"name": ""}, domain.ErrShape},
		{"bad status", map[string]interface{}{"status": "gone"}, domain.ErrInvalidEnum},
		{"new kind without details", map[string]interface{}{
			"name":         "Renamed",
			"powerSources": []interface{}{"Generator", "Solar"},
		}, domain.ErrMissingField},
		{"bad generator capacity", map[string]interface{}{
			"powerSourceDetails": map[string]interface{}{
				"generator": map[string]interface{}{"type": "cat", "capacity": -1.0},
			},
		}, domain.ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, 2001, tt.raw, "admin")
			assert.ErrorIs(t, err, tt.want)

			stored, err := svc.Get(ctx, 2001)
			require.NoError(t, err)
			assert.Equal(t, created, stored)
		})
	}

	_, err = svc.Update(ctx, 9999, map[string]interface{}{"name": "x"}, "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_UpdatePowerSource(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestSiteService(t, nil)

	created, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	raw := map[string]interface{}{"type": "mono", "capacity": 12.0, "tilt": 15.0}
	c.Advance(time.Minute)
	once, err := svc.UpdatePowerSource(ctx, 2001, "solar", raw, "admin")
	require.NoError(t, err)
	c.Advance(time.Minute)
	twice, err := svc.UpdatePowerSource(ctx, 2001, "solar", raw, "admin")
	require.NoError(t, err)

	assert.Equal(t, []domain.PowerSourceKind{domain.Generator, domain.Solar}, twice.PowerSources)
	assert.Equal(t, created.PowerSourceDetails.Generator, twice.PowerSourceDetails.Generator)
	assert.Equal(t, created.Name, twice.Name)
	assert.Equal(t, created.Status, twice.Status)

	assert.True(t, twice.UpdatedAt.After(once.UpdatedAt))
	twice.UpdatedAt = once.UpdatedAt
	assert.Equal(t, once, twice)

	_, err = svc.UpdatePowerSource(ctx, 2001, "wind", raw, "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidEnum)

	_, err = svc.UpdatePowerSource(ctx, 2001, "grid", map[string]interface{}{"voltage": 230.0}, "admin")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	_, err = svc.UpdatePowerSource(ctx, 1, "solar", raw, "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_UpdateStatusErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSiteService(t, nil)

	_, err := svc.UpdateStatus(ctx, 2001, "retired", "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidEnum)

	_, err = svc.UpdateStatus(ctx, 2001, "active", "ops")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_StorageErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	repo := &failingSiteRepo{MemorySiteRepo: repository.NewMemorySiteRepo()}
	rec := &mockRecorder{}
	svc := NewSiteService(repo, nil, rec, nil, 0)
	svc.SetClock(func() time.Time { return testNow })

	created, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	repo.replaceErr = boom
	_, err = svc.UpdateStatus(ctx, 2001, "inactive", "ops")
	assert.ErrorIs(t, err, boom)

	stored, err := svc.Get(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	repo.insertErr = boom
	_, err = svc.Create(ctx, towerPayload(), "admin")
	assert.ErrorIs(t, err, boom)

	// no event for a failed transition
	rec.AssertNotCalled(t, "Record", mock.Anything)
}

func TestSiteService_ListFilterAndCache(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newTestSiteService(t, nil)

	raw := towerPayload()
	delete(raw, "id")
	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		_, err := svc.Create(ctx, raw, "admin")
		require.NoError(t, err)
	}
	_, err := svc.UpdateStatus(ctx, 1011, "inactive", "ops")
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1012, all[0].ID)

	inactive, err := svc.List(ctx, "Inactive")
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, 1011, inactive[0].ID)

	_, err = svc.List(ctx, "retired")
	assert.ErrorIs(t, err, domain.ErrInvalidEnum)

	// cached results are copies
	all[0].Name = "mutated"
	again, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Tower A", again[0].Name)

	// mutations invalidate the cache
	_, err = svc.Delete(ctx, 1012, "admin")
	require.NoError(t, err)
	after, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestSiteService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestSiteService(t, nil)

	_, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 2001, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Tower A", deleted.Name)

	_, err = svc.Get(ctx, 2001)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Delete(ctx, 2001, "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_History(t *testing.T) {
	ctx := context.Background()
	events := repository.NewMemoryEventRepo()
	writer := NewStatusEventWriter(events, 100, time.Hour)
	defer writer.Close()

	svc := NewSiteService(repository.NewMemorySiteRepo(), events, writer, nil, 0)
	c := &clock{now: testNow}
	svc.SetClock(c.Now)

	_, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	for _, st := range []string{"maintenance", "maintenance", "active", "inactive"} {
		c.Advance(time.Minute)
		_, err := svc.UpdateStatus(ctx, 2001, st, "ops")
		require.NoError(t, err)
	}

	// unchanged status is not an event
	assert.Equal(t, 3, writer.Size())
	writer.Flush()

	history, err := svc.History(ctx, 2001, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.StatusInactive, history[0].To)
	assert.Equal(t, domain.StatusActive, history[0].From)
	assert.Equal(t, domain.StatusMaintenance, history[2].To)

	limited, err := svc.History(ctx, 2001, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.History(ctx, 42, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteService_ListLoadOverlappingUpdate(t *testing.T) {
	ctx := context.Background()
	repo := &blockingListRepo{
		MemorySiteRepo: repository.NewMemorySiteRepo(),
		loaded:         make(chan struct{}),
		release:        make(chan struct{}),
		blocked:        true,
	}
	cache := NewCache(time.Minute)
	t.Cleanup(cache.Close)
	svc := NewSiteService(repo, nil, nil, cache, time.Minute)
	svc.SetClock(func() time.Time { return testNow })

	_, err := svc.Create(ctx, towerPayload(), "admin")
	require.NoError(t, err)

	repo.blocked = false
	done := make(chan []domain.Site)
	go func() {
		sites, err := svc.List(ctx, "")
		assert.NoError(t, err)
		done <- sites
	}()

	<-repo.loaded
	_, err = svc.UpdateStatus(ctx, 2001, "inactive", "ops")
	require.NoError(t, err)
	close(repo.release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, domain.StatusActive, stale[0].Status)

	fresh, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, domain.StatusInactive, fresh[0].Status)
}
