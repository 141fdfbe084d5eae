// internal/domain/site.go
package domain

import (
	"strings"
	"time"
)

// FirstSiteID is assigned when the registry is empty.
const FirstSiteID = 1010

// DefaultUptime is stored for sites created without one.
const DefaultUptime = "0%"

// Status of a site
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Statuses lists the accepted status values in display order.
var Statuses = []Status{StatusActive, StatusInactive, StatusMaintenance}

// ParseStatus accepts a status in any letter case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Capacity class of a site
type Capacity string

const (
	CapacityLow    Capacity = "Low"
	CapacityMedium Capacity = "Medium"
	CapacityHigh   Capacity = "High"
)

// ParseCapacity matches Low, Medium or High ignoring case.
func ParseCapacity(s string) (Capacity, bool) {
	for _, c := range []Capacity{CapacityLow, CapacityMedium, CapacityHigh} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Technician responsible for the site.
type Technician struct {
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// Site is a tracked physical installation.
type Site struct {
	ID                 int                `json:"id" bson:"id"`
	Name               string             `json:"name" bson:"name"`
	Address            string             `json:"address" bson:"address"`
	Status             Status             `json:"status" bson:"status"`
	Uptime             string             `json:"uptime" bson:"uptime"`
	Height             string             `json:"height" bson:"height"`
	PowerSources       []PowerSourceKind  `json:"powerSources" bson:"powerSources"`
	PowerSourceDetails PowerSourceDetails `json:"powerSourceDetails" bson:"powerSourceDetails"`
	Capacity           Capacity           `json:"capacity" bson:"capacity"`
	Tags               []string           `json:"tags" bson:"tags"`
	Location           Location           `json:"location" bson:"location"`
	InstallationDate   *time.Time         `json:"installationDate,omitempty" bson:"installationDate,omitempty"`
	LastMaintenance    *time.Time         `json:"lastMaintenance,omitempty" bson:"lastMaintenance,omitempty"`
	Technician         *Technician        `json:"technician,omitempty" bson:"technician,omitempty"`
	Notes              string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedBy          string             `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasPowerSource reports whether kind is selected.
func (s *Site) HasPowerSource(kind PowerSourceKind) bool {
	for _, k := range s.PowerSources {
		if k == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; the copy shares no mutable state with s.
func (s Site) Clone() Site {
	out := s
	out.PowerSources = append([]PowerSourceKind{}, s.PowerSources...)
	out.Tags = append([]string{}, s.Tags...)
	out.PowerSourceDetails = s.PowerSourceDetails.Clone()
	out.InstallationDate = cloneTime(s.InstallationDate)
	out.LastMaintenance = cloneTime(s.LastMaintenance)
	if s.Technician != nil {
		t := *s.Technician
		out.Technician = &t
	}
	return out
}

// Touch sets UpdatedAt, never earlier than CreatedAt.
func (s *Site) Touch(now time.Time) {
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.UpdatedAt = now
}

// SiteFilter narrows a site listing.
type SiteFilter struct {
	Status Status
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
