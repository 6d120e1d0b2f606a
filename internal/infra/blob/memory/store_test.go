package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"wardcore/internal/blob/core"
)

func TestPutGetHeadDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	payload := []byte("csv,data")
	if _, err := s.Put(ctx, "exports/a.csv", bytes.NewReader(payload), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "exports/a.csv", bytes.NewReader(payload), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate put should fail")
	}
	info, rc, err := s.Get(ctx, "exports/a.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(data, payload) || info.ContentType != "text/csv" {
		t.Fatalf("round trip mismatch: %q %+v", data, info)
	}
	if _, err := s.Head(ctx, "exports/a.csv"); err != nil {
		t.Fatalf("head: %v", err)
	}
	ok, err := s.Delete(ctx, "exports/a.csv")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get(ctx, "exports/a.csv"); err == nil {
		t.Fatalf("deleted blob should be gone")
	}
}

func TestListOrderedByKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"b", "a", "exports/z", "exports/a"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a" || infos[1].Key != "exports/z" {
		t.Fatalf("unexpected listing: %v", infos)
	}
}

func TestPutStampsETagAndClock(t *testing.T) {
	s := New()
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	s.SetNowFunc(func() time.Time { return at })
	ctx := context.Background()
	info, err := s.Put(ctx, "exports/a.json", strings.NewReader("{}"), core.PutOptions{Metadata: map[string]string{"metric": "ed_load"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := sha256.Sum256([]byte("{}"))
	if info.ETag != hex.EncodeToString(sum[:]) {
		t.Fatalf("etag mismatch: %s", info.ETag)
	}
	if !info.LastModified.Equal(at) {
		t.Fatalf("last modified = %v, want %v", info.LastModified, at)
	}
	head, err := s.Head(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["metric"] != "ed_load" {
		t.Fatalf("metadata lost: %+v", head.Metadata)
	}
}

func TestDeleteDropsKeyFromListing(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"exports/a", "exports/b", "exports/c"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if ok, err := s.Delete(ctx, "exports/b"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a" || infos[1].Key != "exports/c" {
		t.Fatalf("unexpected listing: %v", infos)
	}
	if ok, _ := s.Delete(ctx, "exports/b"); ok {
		t.Fatalf("second delete should report missing")
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
