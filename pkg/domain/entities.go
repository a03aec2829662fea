// Package domain defines the flat records persisted by the field apps, the
// system metadata carried by remote table entities, and the persistence
// contracts implemented by the local and table stores.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies a record type stored locally or exposed as a remote table.
type EntityType string

// Supported entity type identifiers. Remote table names use the same values.
const (
	// EntityProposal identifies a proposal record.
	EntityProposal EntityType = "Proposal"
	// EntityTimeAttendance identifies a time-attendance entry.
	EntityTimeAttendance EntityType = "TimeAttendance"
	// EntityNote identifies a note record.
	EntityNote EntityType = "Note"
)

// Default field values applied to freshly created records.
const (
	DefaultLastUpdatedBy = "Noone"
	StatusSubmitted      = "Submitted"
)

// Proposal is a bid or proposal tracked by the proposals app.
type Proposal struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Company       string    `json:"company"`
	Contact       string    `json:"contact"`
	Status        string    `json:"status"`
	IssuedDate    time.Time `json:"issued_date"`
	SubmittedDate time.Time `json:"submitted_date"`
	DueDate       time.Time `json:"due_date"`
	IsPrime       bool      `json:"is_prime"`
	LastUpdatedBy string    `json:"last_updated_by"`
}

// NewProposal returns an unsaved proposal with every date set to the day of now.
func NewProposal(now time.Time) Proposal {
	today := Today(now)
	return Proposal{
		IssuedDate:    today,
		SubmittedDate: today,
		DueDate:       today,
		LastUpdatedBy: DefaultLastUpdatedBy,
	}
}

// Persisted reports whether the store has assigned an identifier.
func (p Proposal) Persisted() bool { return p.ID != 0 }

// ShowsSubmittedDate reports whether the submitted date is relevant for the
// current status.
func (p Proposal) ShowsSubmittedDate() bool { return p.Status == StatusSubmitted }

// TimeAttendance is a single day's time entry recorded by an inspector.
type TimeAttendance struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Date        time.Time `json:"date"`
	Commodity   string    `json:"commodity"`
	Exception   string    `json:"exception"`
	RequestType string    `json:"request_type"`
	RequestID   string    `json:"request_id"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Activity    string    `json:"activity"`
	TotalHours  float64   `json:"total_hours"`
}

// NewTimeAttendance returns an unsaved entry dated on the day of now.
func NewTimeAttendance(now time.Time) TimeAttendance {
	return TimeAttendance{Date: Today(now)}
}

// Persisted reports whether the store has assigned an identifier.
func (t TimeAttendance) Persisted() bool { return t.ID != 0 }

// Recalculate refreshes TotalHours from the start and end times. It returns
// true when the stored value changed.
func (t *TimeAttendance) Recalculate() bool {
	total := TotalHours(t.StartTime, t.EndTime)
	if total == t.TotalHours {
		return false
	}
	t.TotalHours = total
	return true
}

// Today truncates now to midnight in its own location.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// EntityData carries the system columns every remote table entity exposes.
type EntityData struct {
	ID        string    `json:"id"`
	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Deleted   bool      `json:"deleted"`
}

// Entity is implemented by types that embed EntityData.
type Entity interface {
	Data() *EntityData
}

// Data returns a pointer to the embedded system fields.
func (e *EntityData) Data() *EntityData { return e }

// SystemFields lists the JSON names owned by the table service. Clients may
// send them but patches never overwrite them.
var SystemFields = []string{"id", "version", "createdAt", "updatedAt", "deleted"}

// Note is a free-text note synchronised through the Note table.
type Note struct {
	EntityData
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// TableRow is the storage form of a remote table entity: system columns plus
// the JSON encoding of the full entity.
type TableRow struct {
	Table     string          `json:"table"`
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Deleted   bool            `json:"deleted"`
	Payload   json.RawMessage `json:"payload"`
}

// Clone returns a copy that does not share the payload buffer.
func (r TableRow) Clone() TableRow {
	cp := r
	if r.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return cp
}
