// Command recordctl drives the field app page models from the terminal: local
// proposals and time-attendance records, and notes on a remote table service.
//
//	recordctl proposals list|add|update|delete [flags]
//	recordctl attendance list|add|update|delete [flags]
//	recordctl notes list|add|update|delete [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"mobiletables/internal/app"
	"mobiletables/internal/app/attendance"
	"mobiletables/internal/app/proposals"
	"mobiletables/internal/cloud"
	"mobiletables/internal/infra/persistence/sqlite"
	"mobiletables/pkg/domain"
)

var (
	exitFunc = os.Exit
	nowFunc  = time.Now
)

const usage = `usage: recordctl <proposals|attendance|notes> <list|add|update|delete> [flags]`

func main() {
	exitFunc(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	var err error
	switch cmd := args[1]; {
	case cmd != "list" && cmd != "add" && cmd != "update" && cmd != "delete":
		err = unknownCommand(args[0], cmd)
	case args[0] == "proposals":
		err = runProposals(ctx, cmd, args[2:], stdout)
	case args[0] == "attendance":
		err = runAttendance(ctx, cmd, args[2:], stdout)
	case args[0] == "notes":
		err = runNotes(ctx, cmd, args[2:], stdout)
	default:
		err = usageError{msg: fmt.Sprintf("unknown record type %q", args[0])}
	}
	var usageErr usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "recordctl: %v\n", err)
		return 1
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// setFlags names the flags given on the command line, so update only
// touches the fields the caller asked to change.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

type stringField struct {
	flag string
	src  *string
	dst  *string
}

func applyStrings(set map[string]bool, fields []stringField) {
	for _, f := range fields {
		if set[f.flag] {
			*f.dst = *f.src
		}
	}
}

func unknownCommand(kind, cmd string) error {
	return usageError{msg: fmt.Sprintf("unknown %s command %q", kind, cmd)}
}

func runProposals(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := newFlagSet("proposals "+cmd, out)
	dbPath := fs.String("db", sqlite.DefaultProposalPath, "proposals database file")
	editor := fs.String("editor", proposals.DefaultEditor, "name recorded as last editor")
	id := fs.Int64("id", 0, "proposal id (update, delete)")
	name := fs.String("name", "", "proposal name")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "category")
	company := fs.String("company", "", "company")
	contact := fs.String("contact", "", "contact")
	status := fs.String("status", "", "status")
	due := fs.String("due", "", "due date (YYYY-MM-DD)")
	prime := fs.Bool("prime", false, "prime contractor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlite.NewProposalDatabase(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	nav := app.NewStack(nil)
	list := proposals.NewListPage(db, nav, proposals.WithClock(nowFunc), proposals.WithEditor(*editor))
	if err := nav.Push(ctx, list); err != nil {
		return err
	}
	if err := list.Appearing(ctx); err != nil {
		return err
	}

	switch cmd {
	case "list":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tSTATUS\tDUE\tPRIME\tUPDATED BY")
		for _, p := range list.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n", p.ID, p.Name, p.Company, p.Status, p.DueDate.Format(time.DateOnly), p.IsPrime, p.LastUpdatedBy)
		}
		return tw.Flush()
	case "add", "update":
		var entry *proposals.EntryPage
		if cmd == "add" {
			entry, err = list.Add(ctx)
		} else {
			entry, err = selectProposal(ctx, list, *id)
		}
		if err != nil {
			return err
		}
		set := setFlags(fs)
		applyStrings(set, []stringField{
			{"name", name, &entry.Proposal.Name},
			{"description", description, &entry.Proposal.Description},
			{"category", category, &entry.Proposal.Category},
			{"company", company, &entry.Proposal.Company},
			{"contact", contact, &entry.Proposal.Contact},
		})
		if set["prime"] {
			entry.Proposal.IsPrime = *prime
		}
		if set["due"] {
			d, err := time.ParseInLocation(time.DateOnly, *due, time.Local)
			if err != nil {
				return usageError{msg: fmt.Sprintf("invalid -due: %v", err)}
			}
			entry.Proposal.DueDate = d
		}
		if set["status"] {
			entry.SetStatus(*status)
		}
		if err := entry.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved proposal %d\n", entry.Proposal.ID)
		return nil
	case "delete":
		entry, err := selectProposal(ctx, list, *id)
		if err != nil {
			return err
		}
		if err := entry.Delete(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted proposal %d\n", *id)
		return nil
	default:
		return unknownCommand("proposals", cmd)
	}
}

func selectProposal(ctx context.Context, list *proposals.ListPage, id int64) (*proposals.EntryPage, error) {
	for _, p := range list.Items {
		if p.ID == id {
			return list.Select(ctx, p)
		}
	}
	return nil, domain.ErrNotFound{Entity: domain.EntityProposal, ID: strconv.FormatInt(id, 10)}
}

func runAttendance(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := newFlagSet("attendance "+cmd, out)
	dbPath := fs.String("db", sqlite.DefaultAttendancePath, "attendance database file")
	user := fs.Int64("user", attendance.DefaultUserID, "inspector user id")
	id := fs.Int64("id", 0, "entry id (update, delete)")
	date := fs.String("date", "", "entry date (YYYY-MM-DD, default today)")
	start := fs.String("start", "", "start time HH:MM")
	end := fs.String("end", "", "end time HH:MM")
	commodity := fs.String("commodity", "", "commodity")
	exception := fs.String("exception", "", "exception")
	requestType := fs.String("request-type", "", "request type")
	requestID := fs.String("request-id", "", "request id")
	activity := fs.String("activity", "", "activity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlite.NewAttendanceDatabase(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	nav := app.NewStack(nil)
	list := attendance.NewListPage(db, nav, attendance.WithClock(nowFunc), attendance.WithUserID(*user))
	if err := nav.Push(ctx, list); err != nil {
		return err
	}
	if err := list.Appearing(ctx); err != nil {
		return err
	}

	switch cmd {
	case "list":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tUSER\tCOMMODITY\tSTART\tEND\tHOURS\tACTIVITY")
		for _, e := range list.Items {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%.2f\t%s\n", e.ID, e.Date.Format(time.DateOnly), e.UserID, e.Commodity, e.StartTime, e.EndTime, e.TotalHours, e.Activity)
		}
		return tw.Flush()
	case "add", "update":
		var entry *attendance.EntryPage
		if cmd == "add" {
			entry, err = list.Add(ctx)
		} else {
			entry, err = selectEntry(ctx, list, *id)
		}
		if err != nil {
			return err
		}
		set := setFlags(fs)
		if set["date"] {
			d, err := time.ParseInLocation(time.DateOnly, *date, time.Local)
			if err != nil {
				return usageError{msg: fmt.Sprintf("invalid -date: %v", err)}
			}
			entry.Entry.Date = d
		}
		if err := setTime(*start, "start", entry.SetStartTime); err != nil {
			return err
		}
		if err := setTime(*end, "end", entry.SetEndTime); err != nil {
			return err
		}
		applyStrings(set, []stringField{
			{"commodity", commodity, &entry.Entry.Commodity},
			{"exception", exception, &entry.Entry.Exception},
			{"request-type", requestType, &entry.Entry.RequestType},
			{"request-id", requestID, &entry.Entry.RequestID},
			{"activity", activity, &entry.Entry.Activity},
		})
		if err := entry.CloseDay(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved entry %d (%.2f hours)\n", entry.Entry.ID, entry.Entry.TotalHours)
		return nil
	case "delete":
		entry, err := selectEntry(ctx, list, *id)
		if err != nil {
			return err
		}
		if err := entry.Delete(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted entry %d\n", *id)
		return nil
	default:
		return unknownCommand("attendance", cmd)
	}
}

func selectEntry(ctx context.Context, list *attendance.ListPage, id int64) (*attendance.EntryPage, error) {
	for _, e := range list.Items {
		if e.ID == id {
			return list.Select(ctx, e)
		}
	}
	return nil, domain.ErrNotFound{Entity: domain.EntityTimeAttendance, ID: strconv.FormatInt(id, 10)}
}

func runNotes(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := newFlagSet("notes "+cmd, out)
	baseURL := fs.String("url", envOr("MOBILETABLES_URL", "http://localhost:8080"), "table service base URL")
	token := fs.String("token", os.Getenv("MOBILETABLES_TOKEN"), "authentication token")
	id := fs.String("id", "", "note id (update, delete)")
	text := fs.String("text", "", "note text (add, update)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := cloud.NewClient(*baseURL, *token, nil)
	if err != nil {
		return err
	}
	notes := cloud.NewTable[domain.Note](client, string(domain.EntityNote))

	switch cmd {
	case "list":
		items, err := notes.ReadAll(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tUPDATED\tTEXT")
		for _, n := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Date.Format(time.DateOnly), n.UpdatedAt.Format(time.RFC3339), n.Text)
		}
		return tw.Flush()
	case "add":
		if *text == "" {
			return usageError{msg: "-text is required"}
		}
		created, err := notes.Insert(ctx, domain.Note{Text: *text, Date: calendarDate(nowFunc())})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved note %s\n", created.ID)
		return nil
	case "update":
		if *id == "" || *text == "" {
			return usageError{msg: "-id and -text are required"}
		}
		note, err := notes.Lookup(ctx, *id)
		if err != nil {
			return err
		}
		note.Text = *text
		updated, err := notes.Update(ctx, *id, note)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "updated note %s (version %s)\n", updated.ID, updated.Version)
		return nil
	case "delete":
		if *id == "" {
			return usageError{msg: "-id is required"}
		}
		if err := notes.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted note %s\n", *id)
		return nil
	default:
		return unknownCommand("notes", cmd)
	}
}

func setTime(raw, flagName string, set func(domain.TimeOfDay)) error {
	if raw == "" {
		return nil
	}
	t, err := domain.ParseTimeOfDay(raw)
	if err != nil {
		return usageError{msg: fmt.Sprintf("invalid -%s: %v", flagName, err)}
	}
	set(t)
	return nil
}

// calendarDate keeps the local calendar day of now as a UTC midnight, the
// form note dates travel in.
func calendarDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
