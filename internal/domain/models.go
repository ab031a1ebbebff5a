package domain

import "time"

// Reservation is a DOI reserved for a record, remembered by accession number
// so the same dataset is not reserved twice against one endpoint.
type Reservation struct {
	Endpoint     string    `json:"endpoint"`
	AccessionNum string    `json:"accession_num"`
	OSTIID       string    `json:"osti_id"`
	DOI          string    `json:"doi"`
	DOIStatus    string    `json:"doi_status"`
	Title        string    `json:"title,omitempty"`
	ReservedAt   time.Time `json:"reserved_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the reservation is past its retention window at now.
func (r Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt.IsZero() || !r.ExpiresAt.After(now)
}
