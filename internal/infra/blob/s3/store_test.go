package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mobiletables/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 || s.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store driver=%s bucket=%s", s.Driver(), s.Bucket())
	}
	info, err := s.Put(ctx, "exports/1/Note.json", bytes.NewReader([]byte(`[{"id":"a"}]`)), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/1/Note.json" || info.Size != 12 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/1/Note.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_, rc, err := s.Get(ctx, "exports/1/Note.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `[{"id":"a"}]` {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := s.Put(ctx, "exports/2/Note.csv", strings.NewReader("id\na\n"), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put csv: %v", err)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil || len(list) != 2 || list[0].Key != "exports/1/Note.json" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	if empty, err := s.List(ctx, "none/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %+v err=%v", empty, err)
	}

	url, err := s.PresignURL(ctx, "exports/1/Note.json", core.SignedURLOptions{})
	if err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("presign: %q err=%v", url, err)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{Method: http.MethodPut}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}

	if ok, err := s.Delete(ctx, "exports/1/Note.json"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Delete(ctx, "exports/1/Note.json"); err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Head(ctx, "exports/1/Note.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "exports/1/Note.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "exports", Endpoint: "http://minio:9000", PathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Bucket() != "exports" {
		t.Fatalf("unexpected bucket %s", s.Bucket())
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	raw := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeAWSChunked([]byte(raw))
	if err != nil || string(got) != "hello world" {
		t.Fatalf("decode: %q err=%v", got, err)
	}
	if _, err := decodeAWSChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected bad size error")
	}
	if _, err := decodeAWSChunked([]byte("5\r\nhi")); err == nil {
		t.Fatalf("expected short body error")
	}
}

func TestFakeBucketRejectsUnknownMethods(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, err := newFakeBucket().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %+v err=%v", resp, err)
	}
}
