package publishers

import (
	"time"

	"github.com/samvad-hq/elink/pkg/elink"
	"github.com/samvad-hq/elink/pkg/record"
)

const (
	OperationReserve = "reserve"
	OperationPost    = "post"
)

// Event represents a record accepted by ELINK, published downstream.
type Event struct {
	Operation     string    `json:"operation"`
	Endpoint      string    `json:"endpoint"`
	OSTIID        string    `json:"osti_id"`
	DOI           string    `json:"doi,omitempty"`
	DOIStatus     string    `json:"doi_status,omitempty"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	AccessionNum  string    `json:"accession_num,omitempty"`
	Title         string    `json:"title,omitempty"`
	PublishedAt   time.Time `json:"published_at"`
}

// NewEvent builds an Event from the "records" element returned by the client.
// Fields missing from the response are taken from the submitted record.
func NewEvent(op, endpoint string, submitted, resp *record.Record) Event {
	item := elink.Item(resp)
	pick := func(key string) string {
		if s := item.Text(key); s != "" {
			return s
		}
		return submitted.Text(key)
	}
	return Event{
		Operation:     op,
		Endpoint:      endpoint,
		OSTIID:        item.Text("osti_id"),
		DOI:           item.Text("doi"),
		DOIStatus:     item.Text("doi_status"),
		Status:        item.Text("status"),
		StatusMessage: item.Text("status_message"),
		AccessionNum:  pick("accession_num"),
		Title:         pick("title"),
		PublishedAt:   time.Now().UTC(),
	}
}

// Attributes are the routing attributes attached by queue-based publishers.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{"operation": e.Operation}
	if e.OSTIID != "" {
		attrs["osti_id"] = e.OSTIID
	}
	if e.DOIStatus != "" {
		attrs["doi_status"] = e.DOIStatus
	}
	return attrs
}
