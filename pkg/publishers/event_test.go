package publishers

import (
	"testing"

	"github.com/samvad-hq/elink/pkg/record"
)

func TestNewEventReadsResponseRecord(t *testing.T) {
	item := record.New()
	item.SetText("osti_id", "1234")
	item.SetText("doi", "10.5072/1234")
	item.SetText("doi_status", "RESERVED")
	item.SetText("status", "SUCCESS")
	resp := record.New()
	resp.Set("record", record.Nested(item))

	submitted := record.New()
	submitted.SetText("title", "A dataset")
	submitted.SetText("accession_num", "ds-9")

	evt := NewEvent(OperationReserve, "https://www.osti.gov/elinktest/", submitted, resp)
	if evt.OSTIID != "1234" || evt.DOI != "10.5072/1234" || evt.Status != "SUCCESS" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Title != "A dataset" || evt.AccessionNum != "ds-9" {
		t.Fatalf("expected fallback to submitted record, got %+v", evt)
	}
	if evt.PublishedAt.IsZero() {
		t.Fatalf("PublishedAt not set")
	}
}

func TestNewEventToleratesMissingRecord(t *testing.T) {
	evt := NewEvent(OperationPost, "", nil, record.New())
	if evt.Operation != OperationPost || evt.OSTIID != "" {
		t.Fatalf("unexpected event %+v", evt)
	}
	attrs := evt.Attributes()
	if len(attrs) != 1 || attrs["operation"] != OperationPost {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}
