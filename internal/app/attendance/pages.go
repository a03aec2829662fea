// Package attendance contains the page models of the time-attendance app.
package attendance

import (
	"context"
	"fmt"
	"time"

	"mobiletables/internal/app"
	"mobiletables/pkg/domain"
)

// DefaultUserID is stamped on entries when a day is closed or deleted.
const DefaultUserID int64 = 1

// Option configures the list page and the entry pages it opens.
type Option func(*ListPage)

// WithClock overrides the clock used to date new entries.
func WithClock(now func() time.Time) Option {
	return func(p *ListPage) {
		if now != nil {
			p.now = now
		}
	}
}

// WithUserID sets the inspector id stamped on entries.
func WithUserID(id int64) Option {
	return func(p *ListPage) {
		if id != 0 {
			p.userID = id
		}
	}
}

// ListPage shows every recorded day.
type ListPage struct {
	repo   domain.AttendanceRepository
	nav    app.Navigator
	now    func() time.Time
	userID int64

	Items []domain.TimeAttendance
}

// NewListPage binds the list page to its repository and navigator.
func NewListPage(repo domain.AttendanceRepository, nav app.Navigator, opts ...Option) *ListPage {
	p := &ListPage{repo: repo, nav: nav, now: time.Now, userID: DefaultUserID}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Title implements app.Page.
func (p *ListPage) Title() string { return "Time & Attendance" }

// Appearing reloads Items from the repository.
func (p *ListPage) Appearing(ctx context.Context) error {
	items, err := p.repo.ListTimeAttendances(ctx)
	if err != nil {
		return fmt.Errorf("load time attendances: %w", err)
	}
	p.Items = items
	return nil
}

// Add opens an entry page for a new entry dated today.
func (p *ListPage) Add(ctx context.Context) (*EntryPage, error) {
	return p.open(ctx, domain.NewTimeAttendance(p.now()))
}

// Select opens an entry page for item.
func (p *ListPage) Select(ctx context.Context, item domain.TimeAttendance) (*EntryPage, error) {
	return p.open(ctx, item)
}

func (p *ListPage) open(ctx context.Context, item domain.TimeAttendance) (*EntryPage, error) {
	entry := &EntryPage{repo: p.repo, nav: p.nav, UserID: p.userID, Entry: item}
	if err := p.nav.Push(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EntryPage edits one day's entry.
type EntryPage struct {
	repo domain.AttendanceRepository
	nav  app.Navigator

	UserID int64
	Entry  domain.TimeAttendance
}

// Title implements app.Page.
func (p *EntryPage) Title() string {
	return p.Entry.Date.Format("Mon 2 Jan 2006")
}

// SetStartTime updates the start time and the derived total.
func (p *EntryPage) SetStartTime(t domain.TimeOfDay) {
	p.Entry.StartTime = t
	p.Entry.Recalculate()
}

// SetEndTime updates the end time and the derived total.
func (p *EntryPage) SetEndTime(t domain.TimeOfDay) {
	p.Entry.EndTime = t
	p.Entry.Recalculate()
}

// CloseDay stamps the user, stores the entry and returns to the list.
func (p *EntryPage) CloseDay(ctx context.Context) error {
	p.Entry.UserID = p.UserID
	if _, err := p.repo.SaveTimeAttendance(ctx, &p.Entry); err != nil {
		return fmt.Errorf("save time attendance: %w", err)
	}
	return p.nav.Pop(ctx)
}

// Delete removes the entry and returns to the list.
func (p *EntryPage) Delete(ctx context.Context) error {
	p.Entry.UserID = p.UserID
	if _, err := p.repo.DeleteTimeAttendance(ctx, p.Entry); err != nil {
		return fmt.Errorf("delete time attendance: %w", err)
	}
	return p.nav.Pop(ctx)
}
