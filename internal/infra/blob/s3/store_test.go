package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"wardcore/internal/blob/core"
)

func TestMockPutGetRoundTrip(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	payload := []byte(`{"points":[]}`)
	info, err := s.Put(ctx, "archives/metrics/ed_load.json", bytes.NewReader(payload), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("head size mismatch: %+v", info)
	}
	got, rc, err := s.Get(ctx, "archives/metrics/ed_load.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: %q", data)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("content type mismatch: %+v", got)
	}
}

func TestMockCreateOnly(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	if _, err := s.Put(ctx, "dup", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := s.Put(ctx, "dup", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only rejection")
	}
}

func TestMockListPrefix(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"archives/a", "archives/b", "misc/c"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "archives/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "archives/a" {
		t.Fatalf("unexpected listing: %v", infos)
	}
}

func TestMockDeleteAndMissingGet(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	if _, err := s.Put(ctx, "victim", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.Delete(ctx, "victim"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get(ctx, "victim"); err == nil {
		t.Fatalf("expected missing object error")
	}
}

func TestPresignRejectsNonGet(t *testing.T) {
	s := NewMockForTests()
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket requirement error")
	}
}
