package domain

import (
	"context"
	"fmt"
)

// ProposalRepository is the data-access surface the proposals pages bind to.
type ProposalRepository interface {
	ListProposals(ctx context.Context) ([]Proposal, error)
	// SaveProposal updates when the proposal already has an ID and inserts
	// otherwise, writing the assigned ID back. It returns the rows affected.
	SaveProposal(ctx context.Context, p *Proposal) (int, error)
	DeleteProposal(ctx context.Context, p Proposal) (int, error)
}

// AttendanceRepository is the data-access surface the attendance pages bind to.
type AttendanceRepository interface {
	ListTimeAttendances(ctx context.Context) ([]TimeAttendance, error)
	SaveTimeAttendance(ctx context.Context, t *TimeAttendance) (int, error)
	DeleteTimeAttendance(ctx context.Context, t TimeAttendance) (int, error)
}

// TableStore persists remote table rows. Implementations must be safe for
// concurrent use.
type TableStore interface {
	// ListRows returns every row of the table ordered by CreatedAt then ID.
	ListRows(ctx context.Context, table string) ([]TableRow, error)
	GetRow(ctx context.Context, table, id string) (TableRow, error)
	InsertRow(ctx context.Context, row TableRow) error
	ReplaceRow(ctx context.Context, row TableRow) error
	DeleteRow(ctx context.Context, table, id string) error
	Close() error
}

// ErrNotFound is returned when a record or row does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict is returned when inserting a row whose ID is already taken.
type ErrConflict struct {
	Entity EntityType
	ID     string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}
