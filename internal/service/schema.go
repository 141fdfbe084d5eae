package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"site_registry/internal/domain"
)

// SitePatch is a parsed site payload. A nil field was not provided.
type SitePatch struct {
	ID               *int
	Name             *string
	Address          *string
	Height           *string
	Uptime           *string
	Notes            *string
	Status           *domain.Status
	Capacity         *domain.Capacity
	Tags             *[]string
	Location         *domain.Location
	InstallationDate *time.Time
	LastMaintenance  *time.Time
	Technician       *domain.Technician
	PowerSources     *[]domain.PowerSourceKind

	// Details holds the raw sub-records present in the payload, by kind.
	Details map[domain.PowerSourceKind]map[string]interface{}

	invalidLocation []domain.Violation
}

// ParseSitePatch reads every recognised field of raw. Null and blank optional
// values count as not provided. Wrongly typed values are reported as violations.
func ParseSitePatch(raw map[string]interface{}) (SitePatch, []domain.Violation) {
	var p SitePatch
	var violations []domain.Violation

	if val, ok := raw["id"]; ok && !isBlank(val) {
		if id, ok := parseID(val); ok {
			p.ID = &id
		} else {
			violations = append(violations, shapeViolation("id", "id must be a non-negative integer"))
		}
	}

	for _, field := range []struct {
		key string
		dst **string
	}{
		{"name", &p.Name},
		{"address", &p.Address},
		{"height", &p.Height},
	} {
		val, ok := raw[field.key]
		if !ok || val == nil {
			continue
		}
		s, ok := val.(string)
		if !ok {
			violations = append(violations, shapeViolation(field.key, field.key+" must be a string"))
			continue
		}
		s = strings.TrimSpace(s)
		*field.dst = &s
	}

	for _, field := range []struct {
		key string
		dst **string
	}{
		{"uptime", &p.Uptime},
		{"notes", &p.Notes},
	} {
		val, ok := raw[field.key]
		if !ok || isBlank(val) {
			continue
		}
		s, ok := val.(string)
		if !ok {
			violations = append(violations, shapeViolation(field.key, field.key+" must be a string"))
			continue
		}
		s = strings.TrimSpace(s)
		*field.dst = &s
	}

	if val, ok := raw["status"]; ok && !isBlank(val) {
		s, _ := val.(string)
		if st, ok := domain.ParseStatus(s); ok {
			p.Status = &st
		} else {
			violations = append(violations, invalidStatus("status"))
		}
	}

	if val, ok := raw["capacity"]; ok && !isBlank(val) {
		s, _ := val.(string)
		if c, ok := domain.ParseCapacity(s); ok {
			p.Capacity = &c
		} else {
			violations = append(violations, domain.NewViolation(domain.ErrInvalidEnum, "capacity",
				"capacity must be one of: Low, Medium, High"))
		}
	}

	if val, ok := raw["tags"]; ok && val != nil {
		if tags, ok := parseTags(val); ok {
			p.Tags = &tags
		} else {
			violations = append(violations, shapeViolation("tags", "tags must be a list of strings"))
		}
	}

	if val, ok := raw["location"]; ok && val != nil {
		loc, locViolations := parseLocation(val)
		if len(locViolations) > 0 {
			p.invalidLocation = locViolations
		} else {
			p.Location = &loc
		}
	}

	for _, field := range []struct {
		key string
		dst **time.Time
	}{
		{"installationDate", &p.InstallationDate},
		{"lastMaintenance", &p.LastMaintenance},
	} {
		val, ok := raw[field.key]
		if !ok || isBlank(val) {
			continue
		}
		t, ok := parseTime(val)
		if !ok {
			violations = append(violations, shapeViolation(field.key, field.key+" must be a date"))
			continue
		}
		*field.dst = &t
	}

	if val, ok := raw["technician"]; ok && val != nil {
		m, ok := val.(map[string]interface{})
		if !ok {
			violations = append(violations, shapeViolation("technician", "technician must be an object"))
		} else if t := (domain.Technician{Name: optString(m, "name"), Phone: optString(m, "phone")}); t != (domain.Technician{}) {
			p.Technician = &t
		}
	}

	if val, ok := raw["powerSources"]; ok && val != nil {
		kinds, kindViolations := parsePowerSources(val)
		violations = append(violations, kindViolations...)
		p.PowerSources = &kinds
	}

	if val, ok := raw[detailsPrefix]; ok && val != nil {
		details, ok := val.(map[string]interface{})
		if !ok {
			violations = append(violations, shapeViolation(detailsPrefix, detailsPrefix+" must be an object"))
		} else {
			p.Details = make(map[domain.PowerSourceKind]map[string]interface{})
			for _, kind := range domain.PowerSourceKinds {
				sub, ok := details[kind.Key()]
				if !ok || sub == nil {
					continue
				}
				m, ok := sub.(map[string]interface{})
				if !ok {
					violations = append(violations, shapeViolation(detailsPrefix+"."+kind.Key(),
						fmt.Sprintf("%s details must be an object", kind)))
					continue
				}
				p.Details[kind] = m
			}
		}
	}

	return p, violations
}

// NormalizeSite builds a new site record from a create payload, filling in
// defaults. Only sub-records of selected power sources are kept.
func NormalizeSite(raw map[string]interface{}, now time.Time) (domain.Site, []domain.Violation) {
	p, violations := ParseSitePatch(raw)

	site := domain.Site{
		Status:       domain.StatusActive,
		Capacity:     domain.CapacityMedium,
		Uptime:       domain.DefaultUptime,
		Tags:         []string{},
		PowerSources: []domain.PowerSourceKind{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if p.ID != nil {
		site.ID = *p.ID
	}
	if p.Location != nil {
		site.Location = *p.Location
	} else if len(p.invalidLocation) > 0 {
		violations = append(violations, p.invalidLocation...)
	} else {
		violations = append(violations,
			shapeViolation("location.lat", "location.lat is required"),
			shapeViolation("location.lng", "location.lng is required"))
	}

	applyScalars(&site, p)
	if p.Status != nil {
		site.Status = *p.Status
	}
	if p.PowerSources != nil {
		site.PowerSources = append([]domain.PowerSourceKind{}, *p.PowerSources...)
	}
	for _, kind := range site.PowerSources {
		if sub, ok := p.Details[kind]; ok {
			site.PowerSourceDetails.Set(ParsePowerSource(kind, sub))
		}
	}

	return site, append(violations, checkShape(site)...)
}

// ParsePowerSource converts a raw sub-record into its typed variant.
// Values that do not parse are dropped; validation reports them beforehand.
func ParsePowerSource(kind domain.PowerSourceKind, raw map[string]interface{}) domain.PowerSource {
	switch kind {
	case domain.Grid:
		return &domain.GridDetails{
			ConnectionType: strings.ToLower(optString(raw, "connectionType")),
			Voltage:        optFloat(raw, "voltage"),
			Load:           optFloat(raw, "load"),
		}
	case domain.Generator:
		return &domain.GeneratorDetails{
			Type:     strings.ToLower(optString(raw, "type")),
			Capacity: optFloat(raw, "capacity"),
			Load:     optFloat(raw, "load"),
			Autonomy: optFloat(raw, "autonomy"),
			FuelTank: optFloat(raw, "fuelTank"),
		}
	case domain.Battery:
		return &domain.BatteryDetails{
			Type:     strings.ToLower(optString(raw, "type")),
			Capacity: optFloat(raw, "capacity"),
			Voltage:  optFloat(raw, "voltage"),
			Depth:    optFloat(raw, "depth"),
			Quantity: optFloat(raw, "quantity"),
		}
	case domain.Solar:
		return &domain.SolarDetails{
			Type:         strings.ToLower(optString(raw, "type")),
			Capacity:     optFloat(raw, "capacity"),
			Tilt:         optFloat(raw, "tilt"),
			InverterSize: optFloat(raw, "inverterSize"),
			Autonomy:     optFloat(raw, "autonomy"),
		}
	case domain.Other:
		return &domain.OtherDetails{
			Type:        optString(raw, "type"),
			Capacity:    optFloat(raw, "capacity"),
			Description: optString(raw, "description"),
		}
	}
	return nil
}

// applyScalars copies provided plain fields; status and power sources are left to the caller.
func applyScalars(site *domain.Site, p SitePatch) {
	if p.Name != nil {
		site.Name = *p.Name
	}
	if p.Address != nil {
		site.Address = *p.Address
	}
	if p.Height != nil {
		site.Height = *p.Height
	}
	if p.Uptime != nil {
		site.Uptime = *p.Uptime
	}
	if p.Notes != nil {
		site.Notes = *p.Notes
	}
	if p.Capacity != nil {
		site.Capacity = *p.Capacity
	}
	if p.Tags != nil {
		site.Tags = append([]string{}, *p.Tags...)
	}
	if p.Location != nil {
		site.Location = *p.Location
	}
	if p.InstallationDate != nil {
		t := *p.InstallationDate
		site.InstallationDate = &t
	}
	if p.LastMaintenance != nil {
		t := *p.LastMaintenance
		site.LastMaintenance = &t
	}
	if p.Technician != nil {
		t := *p.Technician
		site.Technician = &t
	}
}

// checkShape enforces the non-empty required top-level strings.
func checkShape(site domain.Site) []domain.Violation {
	var violations []domain.Violation
	for _, f := range []struct{ key, val string }{
		{"name", site.Name},
		{"address", site.Address},
		{"height", site.Height},
	} {
		if f.val == "" {
			violations = append(violations, shapeViolation(f.key, f.key+" is required"))
		}
	}
	return violations
}

// parseID accepts 0, which asks Create to assign the next id.
func parseID(val interface{}) (int, bool) {
	switch v := val.(type) {
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		return id, err == nil && id >= 0
	default:
		f, ok := toFloat(v)
		if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
}

func parseLocation(val interface{}) (domain.Location, []domain.Violation) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return domain.Location{}, []domain.Violation{
			shapeViolation("location", "location must be an object with lat and lng"),
		}
	}

	var loc domain.Location
	var violations []domain.Violation
	for _, c := range []struct {
		key string
		dst *float64
	}{
		{"lat", &loc.Lat},
		{"lng", &loc.Lng},
	} {
		path := "location." + c.key
		val, ok := m[c.key]
		if !ok || val == nil {
			violations = append(violations, shapeViolation(path, path+" is required"))
			continue
		}
		if _, isString := val.(string); isString {
			violations = append(violations, shapeViolation(path, path+" must be a number"))
			continue
		}
		f, ok := toFloat(val)
		if !ok {
			violations = append(violations, shapeViolation(path, path+" must be a number"))
			continue
		}
		*c.dst = f
	}
	return loc, violations
}

func parseTags(val interface{}) ([]string, bool) {
	var items []interface{}
	switch v := val.(type) {
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			items = append(items, s)
		}
	default:
		return nil, false
	}

	tags := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		tags = append(tags, s)
	}
	return tags, true
}

func parsePowerSources(val interface{}) ([]domain.PowerSourceKind, []domain.Violation) {
	items, ok := val.([]interface{})
	if !ok {
		return []domain.PowerSourceKind{}, []domain.Violation{
			shapeViolation("powerSources", "powerSources must be a list"),
		}
	}

	kinds := make([]domain.PowerSourceKind, 0, len(items))
	var violations []domain.Violation
	for _, item := range items {
		s, _ := item.(string)
		kind, ok := domain.ParsePowerSourceKind(s)
		if !ok {
			violations = append(violations, domain.NewViolation(domain.ErrInvalidEnum, "powerSources",
				fmt.Sprintf("unknown power source %v", item)))
			continue
		}
		if !containsKind(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, violations
}

func containsKind(kinds []domain.PowerSourceKind, kind domain.PowerSourceKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func shapeViolation(field, message string) domain.Violation {
	return domain.NewViolation(domain.ErrShape, field, message)
}

func invalidStatus(field string) domain.Violation {
	return domain.NewViolation(domain.ErrInvalidEnum, field, "status must be one of: active, inactive, maintenance")
}
