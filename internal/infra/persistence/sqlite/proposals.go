package sqlite

import (
	"context"
	"fmt"

	"mobiletables/pkg/domain"
)

var _ domain.ProposalRepository = (*ProposalDatabase)(nil)

// DefaultProposalPath is the file name used by the proposals app.
const DefaultProposalPath = "Proposal.db3"

const proposalDDL = `CREATE TABLE IF NOT EXISTS proposal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	issued_date TEXT NOT NULL DEFAULT '',
	submitted_date TEXT NOT NULL DEFAULT '',
	due_date TEXT NOT NULL DEFAULT '',
	is_prime INTEGER NOT NULL DEFAULT 0,
	last_updated_by TEXT NOT NULL DEFAULT ''
)`

const proposalColumns = `id, name, description, category, company, contact, status, issued_date, submitted_date, due_date, is_prime, last_updated_by`

// ProposalDatabase is the proposals app's local data-access object.
type ProposalDatabase struct {
	*Store
}

// NewProposalDatabase opens the proposals file and creates its table on first run.
func NewProposalDatabase(ctx context.Context, path string) (*ProposalDatabase, error) {
	store, err := Open(path, DefaultProposalPath)
	if err != nil {
		return nil, err
	}
	if err := store.createTable(ctx, "proposal", proposalDDL); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &ProposalDatabase{Store: store}, nil
}

// ListProposals returns every stored proposal in insertion order.
func (d *ProposalDatabase) ListProposals(ctx context.Context) ([]domain.Proposal, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+proposalColumns+` FROM proposal ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select proposals: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Proposal
	for rows.Next() {
		var (
			p                      domain.Proposal
			issued, submitted, due string
			isPrime                int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Company, &p.Contact, &p.Status,
			&issued, &submitted, &due, &isPrime, &p.LastUpdatedBy); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if p.IssuedDate, err = parseTime(issued); err != nil {
			return nil, err
		}
		if p.SubmittedDate, err = parseTime(submitted); err != nil {
			return nil, err
		}
		if p.DueDate, err = parseTime(due); err != nil {
			return nil, err
		}
		p.IsPrime = isPrime != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return out, nil
}

// SaveProposal updates an existing proposal or inserts a new one.
func (d *ProposalDatabase) SaveProposal(ctx context.Context, p *domain.Proposal) (int, error) {
	if p.Persisted() {
		res, err := d.db.ExecContext(ctx, `UPDATE proposal SET name=?, description=?, category=?, company=?, contact=?, status=?,
			issued_date=?, submitted_date=?, due_date=?, is_prime=?, last_updated_by=? WHERE id=?`,
			p.Name, p.Description, p.Category, p.Company, p.Contact, p.Status,
			formatTime(p.IssuedDate), formatTime(p.SubmittedDate), formatTime(p.DueDate), boolInt(p.IsPrime), p.LastUpdatedBy, p.ID)
		if err != nil {
			return 0, fmt.Errorf("update proposal %d: %w", p.ID, err)
		}
		return rowsAffected(res)
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO proposal(name, description, category, company, contact, status,
		issued_date, submitted_date, due_date, is_prime, last_updated_by) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		p.Name, p.Description, p.Category, p.Company, p.Contact, p.Status,
		formatTime(p.IssuedDate), formatTime(p.SubmittedDate), formatTime(p.DueDate), boolInt(p.IsPrime), p.LastUpdatedBy)
	if err != nil {
		return 0, fmt.Errorf("insert proposal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return rowsAffected(res)
}

// DeleteProposal removes the proposal with p's identifier.
func (d *ProposalDatabase) DeleteProposal(ctx context.Context, p domain.Proposal) (int, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM proposal WHERE id=?`, p.ID)
	if err != nil {
		return 0, fmt.Errorf("delete proposal %d: %w", p.ID, err)
	}
	return rowsAffected(res)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
