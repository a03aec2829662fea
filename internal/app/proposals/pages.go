// Package proposals contains the page models of the proposals app: a list of
// stored proposals and an entry page that edits one of them.
package proposals

import (
	"context"
	"fmt"
	"time"

	"mobiletables/internal/app"
	"mobiletables/pkg/domain"
)

// DefaultEditor is written to LastUpdatedBy on save.
const DefaultEditor = "TestUser"

// StatusOptions are the values offered by the status picker.
var StatusOptions = []string{"Draft", "In Review", domain.StatusSubmitted, "Awarded", "Lost"}

// Option configures the list page and the entry pages it opens.
type Option func(*ListPage)

// WithClock overrides the clock used to default new proposal dates.
func WithClock(now func() time.Time) Option {
	return func(p *ListPage) {
		if now != nil {
			p.now = now
		}
	}
}

// WithEditor sets the name stamped on saved proposals.
func WithEditor(name string) Option {
	return func(p *ListPage) {
		if name != "" {
			p.editor = name
		}
	}
}

// ListPage shows every stored proposal.
type ListPage struct {
	repo   domain.ProposalRepository
	nav    app.Navigator
	now    func() time.Time
	editor string

	Items []domain.Proposal
}

// NewListPage binds the list page to its repository and navigator.
func NewListPage(repo domain.ProposalRepository, nav app.Navigator, opts ...Option) *ListPage {
	p := &ListPage{repo: repo, nav: nav, now: time.Now, editor: DefaultEditor}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Title implements app.Page.
func (p *ListPage) Title() string { return "Proposals" }

// Appearing reloads Items from the repository.
func (p *ListPage) Appearing(ctx context.Context) error {
	items, err := p.repo.ListProposals(ctx)
	if err != nil {
		return fmt.Errorf("load proposals: %w", err)
	}
	p.Items = items
	return nil
}

// Add opens an entry page for a new proposal dated today.
func (p *ListPage) Add(ctx context.Context) (*EntryPage, error) {
	return p.open(ctx, domain.NewProposal(p.now()))
}

// Select opens an entry page for item.
func (p *ListPage) Select(ctx context.Context, item domain.Proposal) (*EntryPage, error) {
	return p.open(ctx, item)
}

func (p *ListPage) open(ctx context.Context, item domain.Proposal) (*EntryPage, error) {
	entry := &EntryPage{
		repo:                 p.repo,
		nav:                  p.nav,
		Editor:               p.editor,
		Proposal:             item,
		SubmittedDateVisible: item.ShowsSubmittedDate(),
	}
	if err := p.nav.Push(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EntryPage edits a single proposal.
type EntryPage struct {
	repo domain.ProposalRepository
	nav  app.Navigator

	Editor               string
	Proposal             domain.Proposal
	SubmittedDateVisible bool
}

// Title implements app.Page.
func (p *EntryPage) Title() string {
	if p.Proposal.Persisted() {
		return p.Proposal.Name
	}
	return "New Proposal"
}

// SetStatus changes the status and toggles the submitted date field.
func (p *EntryPage) SetStatus(status string) {
	p.Proposal.Status = status
	p.SubmittedDateVisible = p.Proposal.ShowsSubmittedDate()
}

// Save stamps the editor, stores the proposal and returns to the list.
func (p *EntryPage) Save(ctx context.Context) error {
	p.Proposal.LastUpdatedBy = p.Editor
	if _, err := p.repo.SaveProposal(ctx, &p.Proposal); err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	return p.nav.Pop(ctx)
}

// Delete removes the proposal and returns to the list.
func (p *EntryPage) Delete(ctx context.Context) error {
	if _, err := p.repo.DeleteProposal(ctx, p.Proposal); err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	return p.nav.Pop(ctx)
}
