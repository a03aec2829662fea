package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"mobiletables/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"table": "Note"}
	info, err := s.Put(ctx, "exports/1/Note.json", bytes.NewReader([]byte(`[]`)), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["table"] = "mutated"
	if info.Size != 2 || info.ETag == "" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/1/Note.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}

	got, rc, err := s.Get(ctx, "exports/1/Note.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "[]" || got.Metadata["table"] != "Note" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	got.Metadata["table"] = "changed"
	head, err := s.Head(ctx, "exports/1/Note.json")
	if err != nil || head.Metadata["table"] != "Note" {
		t.Fatalf("metadata should be isolated: %+v err=%v", head, err)
	}

	_, _ = s.Put(ctx, "exports/2/Note.csv", bytes.NewReader([]byte("id\n")), core.PutOptions{})
	_, _ = s.Put(ctx, "other/x", bytes.NewReader(nil), core.PutOptions{})
	list, err := s.List(ctx, "exports/")
	if err != nil || len(list) != 2 || list[0].Key != "exports/1/Note.json" || list[1].Key != "exports/2/Note.csv" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	if _, err := s.PresignURL(ctx, "other/x", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign, got %v", err)
	}
	if ok, _ := s.Delete(ctx, "other/x"); !ok {
		t.Fatalf("expected delete to report existing key")
	}
	if ok, _ := s.Delete(ctx, "other/x"); ok {
		t.Fatalf("expected second delete to report missing key")
	}
	if _, _, err := s.Get(ctx, "other/x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "other/x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on head, got %v", err)
	}
}
