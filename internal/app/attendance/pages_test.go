package attendance

import (
	"context"
	"testing"
	"time"

	"mobiletables/internal/app"
	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/pkg/domain"
)

func TestCloseDayRecordsHours(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAttendanceStore()
	nav := app.NewStack(nil)
	now := time.Date(2024, 7, 2, 18, 30, 0, 0, time.UTC)
	list := NewListPage(repo, nav, WithClock(func() time.Time { return now }))

	entry, err := list.Add(ctx)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !entry.Entry.Date.Equal(domain.Today(now)) {
		t.Fatalf("unexpected date %v", entry.Entry.Date)
	}
	if entry.Title() != "Tue 2 Jul 2024" {
		t.Fatalf("unexpected title %q", entry.Title())
	}
	entry.SetStartTime(domain.Clock(8, 0))
	entry.SetEndTime(domain.Clock(12, 40))
	if entry.Entry.TotalHours != 4.5 {
		t.Fatalf("expected 4.5 hours, got %v", entry.Entry.TotalHours)
	}
	entry.Entry.Commodity = "Citrus"
	if err := entry.CloseDay(ctx); err != nil {
		t.Fatalf("close day: %v", err)
	}
	if nav.Depth() != 0 {
		t.Fatalf("close day should pop the entry page")
	}

	if err := list.Appearing(ctx); err != nil {
		t.Fatalf("appearing: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected one entry, got %d", len(list.Items))
	}
	got := list.Items[0]
	if got.UserID != DefaultUserID || got.TotalHours != 4.5 || got.Commodity != "Citrus" || got.ID == 0 {
		t.Fatalf("unexpected stored entry %+v", got)
	}
}

func TestEndBeforeStartGivesNegativeHours(t *testing.T) {
	entry := &EntryPage{}
	entry.SetStartTime(domain.Clock(10, 0))
	entry.SetEndTime(domain.Clock(8, 50))
	if entry.Entry.TotalHours != -1 {
		t.Fatalf("expected -1, got %v", entry.Entry.TotalHours)
	}
}

func TestSelectAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAttendanceStore()
	seed := domain.TimeAttendance{Activity: "Inspection"}
	if _, err := repo.SaveTimeAttendance(ctx, &seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	nav := app.NewStack(nil)
	list := NewListPage(repo, nav, WithUserID(42))
	if err := list.Appearing(ctx); err != nil {
		t.Fatalf("appearing: %v", err)
	}
	entry, err := list.Select(ctx, list.Items[0])
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if entry.UserID != 42 {
		t.Fatalf("unexpected user id %d", entry.UserID)
	}
	if err := entry.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if entry.Entry.UserID != 42 {
		t.Fatalf("delete should stamp the user id")
	}
	items, _ := repo.ListTimeAttendances(ctx)
	if len(items) != 0 {
		t.Fatalf("expected entry removed, got %+v", items)
	}
}
