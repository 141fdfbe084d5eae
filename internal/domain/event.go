package domain

import "time"

// StatusEvent records one status transition of a site.
type StatusEvent struct {
	SiteID int       `json:"siteId"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}
