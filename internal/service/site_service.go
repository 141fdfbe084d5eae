// internal/service/site_service.go

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"site_registry/internal/domain"
	"site_registry/internal/repository"
	"site_registry/pkg/logger"
)

const siteListKeyPrefix = "sites:"

// SiteService applies site payloads to the registry
type SiteService struct {
	sites    repository.SiteRepository
	events   repository.EventRepository
	recorder EventRecorder
	cache    *Cache
	cacheTTL time.Duration
	now      func() time.Time

	// serializes server-side id assignment
	idMu sync.Mutex
}

// NewSiteService creates a site service. events, recorder and cache may be nil.
func NewSiteService(
	sites repository.SiteRepository,
	events repository.EventRepository,
	recorder EventRecorder,
	cache *Cache,
	cacheTTL time.Duration,
) *SiteService {
	return &SiteService{
		sites:    sites,
		events:   events,
		recorder: recorder,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *SiteService) SetClock(now func() time.Time) {
	s.now = now
}

// Mongo stores milliseconds; truncating keeps records identical after a round trip.
func (s *SiteService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// List returns sites matching the optional status filter, newest first
func (s *SiteService) List(ctx context.Context, status string) ([]domain.Site, error) {
	var filter domain.SiteFilter
	if strings.TrimSpace(status) != "" {
		st, ok := domain.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: status filter %q", domain.ErrInvalidEnum, status)
		}
		filter.Status = st
	}

	if s.cache == nil || s.cacheTTL <= 0 {
		return s.sites.List(ctx, filter)
	}

	value, err := s.cache.GetOrLoad(ctx, siteListKeyPrefix+string(filter.Status), s.cacheTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.sites.List(ctx, filter)
		})
	if err != nil {
		return nil, err
	}

	cached := value.([]domain.Site)
	out := make([]domain.Site, len(cached))
	for i, site := range cached {
		out[i] = site.Clone()
	}
	return out, nil
}

// Get returns one site
func (s *SiteService) Get(ctx context.Context, id int) (domain.Site, error) {
	return s.sites.Get(ctx, id)
}

// Create validates and stores a new site. Without an id in the payload the
// next free id is assigned.
func (s *SiteService) Create(ctx context.Context, raw map[string]interface{}, actor string) (domain.Site, error) {
	now := s.timestamp()

	site, violations := NormalizeSite(raw, now)
	violations = append(violations, ValidatePowerSources(site.PowerSources, PayloadValues(raw))...)
	if err := domain.Validation(violations); err != nil {
		return domain.Site{}, err
	}
	site.CreatedBy = actor

	s.idMu.Lock()
	defer s.idMu.Unlock()

	if site.ID == 0 {
		max, ok, err := s.sites.MaxID(ctx)
		if err != nil {
			return domain.Site{}, err
		}
		site.ID = domain.FirstSiteID
		if ok {
			site.ID = max + 1
		}
	}

	if err := s.sites.Insert(ctx, site); err != nil {
		return domain.Site{}, err
	}
	s.invalidate()

	logger.WithFields(map[string]interface{}{"site": site.ID, "actor": actor}, "Site created")
	return site, nil
}

// Update applies a full-update payload
func (s *SiteService) Update(ctx context.Context, id int, raw map[string]interface{}, actor string) (domain.Site, error) {
	stored, err := s.sites.Get(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}

	p, violations := ParseSitePatch(raw)
	merged, err := MergeFull(stored, p, s.timestamp())
	if err != nil {
		return domain.Site{}, err
	}

	violations = append(violations, checkShape(merged)...)
	violations = append(violations, ValidatePowerSources(merged.PowerSources, FullUpdateValues(stored, p))...)
	if err := domain.Validation(violations); err != nil {
		return domain.Site{}, err
	}

	if err := s.sites.Replace(ctx, merged); err != nil {
		return domain.Site{}, err
	}
	s.invalidate()
	s.recordTransition(stored, merged, actor)

	logger.WithFields(map[string]interface{}{"site": id, "actor": actor}, "Site updated")
	return merged, nil
}

// UpdatePowerSource replaces the details of one power source kind and
// leaves every other field untouched
func (s *SiteService) UpdatePowerSource(ctx context.Context, id int, kind string, raw map[string]interface{}, actor string) (domain.Site, error) {
	k, ok := domain.ParsePowerSourceKind(kind)
	if !ok {
		return domain.Site{}, domain.Validation([]domain.Violation{
			domain.NewViolation(domain.ErrInvalidEnum, "kind",
				fmt.Sprintf("unknown power source %s", kind)),
		})
	}

	stored, err := s.sites.Get(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}

	if err := domain.Validation(ValidatePowerSources([]domain.PowerSourceKind{k}, PowerSourceValues(k, raw))); err != nil {
		return domain.Site{}, err
	}

	merged := MergePowerSource(stored, ParsePowerSource(k, raw), s.timestamp())
	if err := s.sites.Replace(ctx, merged); err != nil {
		return domain.Site{}, err
	}
	s.invalidate()

	logger.WithFields(map[string]interface{}{"site": id, "kind": k, "actor": actor}, "Power source updated")
	return merged, nil
}

// UpdateStatus changes only the status of a site
func (s *SiteService) UpdateStatus(ctx context.Context, id int, status string, actor string) (domain.Site, error) {
	next, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Site{}, domain.Validation([]domain.Violation{
			domain.NewViolation(domain.ErrInvalidEnum, "status", "Invalid status value"),
		})
	}

	stored, err := s.sites.Get(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}

	updated := ApplyStatus(stored, next, s.timestamp())
	if err := s.sites.Replace(ctx, updated); err != nil {
		return domain.Site{}, err
	}
	s.invalidate()
	s.recordTransition(stored, updated, actor)

	return updated, nil
}

// Delete removes a site and returns the removed record
func (s *SiteService) Delete(ctx context.Context, id int, actor string) (domain.Site, error) {
	deleted, err := s.sites.Delete(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}
	s.invalidate()

	logger.WithFields(map[string]interface{}{"site": id, "actor": actor}, "Site deleted")
	return deleted, nil
}

// History returns the latest status transitions of a site. Events reach the
// store on the next writer flush.
func (s *SiteService) History(ctx context.Context, id int, limit int) ([]domain.StatusEvent, error) {
	if _, err := s.sites.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []domain.StatusEvent{}, nil
	}
	return s.events.History(ctx, id, limit)
}

// Export renders the filtered site list as an xlsx workbook
func (s *SiteService) Export(ctx context.Context, status string) ([]byte, error) {
	sites, err := s.List(ctx, status)
	if err != nil {
		return nil, err
	}
	return ExportSites(sites)
}

// Stats reports list cache and status event writer counters
func (s *SiteService) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"store": s.sites.Type(),
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	if w, ok := s.recorder.(interface{ Stats() map[string]interface{} }); ok {
		stats["event_writer"] = w.Stats()
	}
	return stats
}

func (s *SiteService) recordTransition(before, after domain.Site, actor string) {
	if s.recorder == nil || before.Status == after.Status {
		return
	}
	s.recorder.Record(domain.StatusEvent{
		SiteID: after.ID,
		From:   before.Status,
		To:     after.Status,
		Actor:  actor,
		At:     after.UpdatedAt,
	})
}

func (s *SiteService) invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}
