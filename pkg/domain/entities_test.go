package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewProposalDefaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	p := NewProposal(now)
	if p.Persisted() {
		t.Fatalf("new proposal must not be persisted")
	}
	if p.LastUpdatedBy != DefaultLastUpdatedBy {
		t.Fatalf("expected default last updated by, got %q", p.LastUpdatedBy)
	}
	today := Today(now)
	for name, d := range map[string]time.Time{"issued": p.IssuedDate, "submitted": p.SubmittedDate, "due": p.DueDate} {
		if !d.Equal(today) {
			t.Errorf("%s date = %v, want %v", name, d, today)
		}
	}
}

func TestProposalShowsSubmittedDate(t *testing.T) {
	p := Proposal{Status: "Draft"}
	if p.ShowsSubmittedDate() {
		t.Fatalf("draft should hide submitted date")
	}
	p.Status = StatusSubmitted
	if !p.ShowsSubmittedDate() {
		t.Fatalf("submitted should show submitted date")
	}
}

func TestNoteJSONFlattensSystemFields(t *testing.T) {
	note := Note{EntityData: EntityData{ID: "n1", Version: "2"}, Text: "hello"}
	data, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range SystemFields {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing system field %s in %s", field, data)
		}
	}
	if raw["text"] != "hello" {
		t.Fatalf("unexpected text %v", raw["text"])
	}
	var entity Entity = &note
	if entity.Data().ID != "n1" {
		t.Fatalf("expected entity data accessor to expose id")
	}
}

func TestTableRowCloneIsolatesPayload(t *testing.T) {
	row := TableRow{Table: "Note", ID: "a", Payload: json.RawMessage(`{"text":"x"}`)}
	cp := row.Clone()
	cp.Payload[2] = 'X'
	if string(row.Payload) != `{"text":"x"}` {
		t.Fatalf("clone shares payload: %s", row.Payload)
	}
}

func TestErrorTypes(t *testing.T) {
	var err error = ErrNotFound{Entity: EntityNote, ID: "x"}
	var nf ErrNotFound
	if !errors.As(err, &nf) || nf.ID != "x" {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := (ErrConflict{Entity: EntityNote, ID: "y"}).Error(); got != "Note y already exists" {
		t.Fatalf("unexpected conflict message %q", got)
	}
}
