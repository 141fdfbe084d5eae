package service

import (
	"time"

	"site_registry/internal/domain"
)

// MergeFull merges a full-update payload over the stored site and returns the
// record to persist. stored is not modified.
//
// Provided fields replace stored ones, omitted fields are kept. An invalid
// location keeps the stored one. When powerSources is provided every selected
// kind takes exactly the incoming sub-record, and sub-records of deselected
// kinds are dropped.
func MergeFull(stored domain.Site, p SitePatch, now time.Time) (domain.Site, error) {
	if p.ID != nil && *p.ID != stored.ID {
		return domain.Site{}, domain.Validation([]domain.Violation{
			domain.NewViolation(domain.ErrImmutableField, "id", "Site ID cannot be changed"),
		})
	}

	next := stored.Clone()
	applyScalars(&next, p)

	if p.Status != nil {
		next.Status, next.LastMaintenance = TransitionStatus(stored.Status, next.LastMaintenance, *p.Status, now)
	}

	if p.PowerSources != nil {
		next.PowerSources = append([]domain.PowerSourceKind{}, (*p.PowerSources)...)
		for _, kind := range next.PowerSources {
			next.PowerSourceDetails.Delete(kind)
			if sub, ok := p.Details[kind]; ok {
				next.PowerSourceDetails.Set(ParsePowerSource(kind, sub))
			}
		}
	} else {
		for _, kind := range next.PowerSources {
			if sub, ok := p.Details[kind]; ok {
				next.PowerSourceDetails.Set(ParsePowerSource(kind, sub))
			}
		}
	}
	purgeDeselected(&next)

	next.Touch(now)
	return next, nil
}

// FullUpdateValues is the flat candidate view MergeFull will persist for the
// selected power sources: incoming sub-records where provided, stored ones
// where they are kept.
func FullUpdateValues(stored domain.Site, p SitePatch) map[string]interface{} {
	values := make(map[string]interface{})
	selected := stored.PowerSources
	if p.PowerSources != nil {
		selected = *p.PowerSources
	}

	for _, kind := range selected {
		if sub, ok := p.Details[kind]; ok {
			flatten(detailsPrefix+"."+kind.Key(), sub, values)
			continue
		}
		if p.PowerSources != nil {
			continue
		}
		if ps, ok := stored.PowerSourceDetails.Get(kind); ok {
			for field, val := range ps.Values() {
				values[detailPath(kind, field)] = val
			}
		}
	}
	return values
}

// MergePowerSource returns stored with only the sub-record of ps's kind
// replaced, adding the kind to powerSources when absent.
func MergePowerSource(stored domain.Site, ps domain.PowerSource, now time.Time) domain.Site {
	next := stored.Clone()
	if !next.HasPowerSource(ps.Kind()) {
		next.PowerSources = append(next.PowerSources, ps.Kind())
	}
	next.PowerSourceDetails.Set(ps)
	next.Touch(now)
	return next
}

// PowerSourceValues is the flat view of a single raw sub-record.
func PowerSourceValues(kind domain.PowerSourceKind, raw map[string]interface{}) map[string]interface{} {
	values := make(map[string]interface{}, len(raw))
	flatten(detailsPrefix+"."+kind.Key(), raw, values)
	return values
}

// ApplyStatus returns stored moved to status next.
func ApplyStatus(stored domain.Site, next domain.Status, now time.Time) domain.Site {
	out := stored.Clone()
	out.Status, out.LastMaintenance = TransitionStatus(stored.Status, out.LastMaintenance, next, now)
	out.Touch(now)
	return out
}

// PayloadValues flattens a whole payload into dotted keys.
func PayloadValues(raw map[string]interface{}) map[string]interface{} {
	values := make(map[string]interface{})
	flatten("", raw, values)
	return values
}

func purgeDeselected(site *domain.Site) {
	for _, kind := range domain.PowerSourceKinds {
		if !site.HasPowerSource(kind) {
			site.PowerSourceDetails.Delete(kind)
		}
	}
}
