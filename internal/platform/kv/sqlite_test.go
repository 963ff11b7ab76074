package kv_test

import (
	"context"
	"slices"
	"testing"

	"backtalk/internal/platform/kv"
)

func openStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatal("missing key reported present")
	}

	if err := s.Set(ctx, "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(v) != `{"x":1}` {
		t.Fatalf("got %q", v)
	}

	// last write wins
	if err := s.Set(ctx, "a", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("set again: %v", err)
	}
	v, _, _ = s.Get(ctx, "a")
	if string(v) != `{"x":2}` {
		t.Fatalf("got %q after overwrite", v)
	}
}

func TestSetNXWinsOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	won, err := s.SetNX(ctx, "guard", []byte("1"))
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if !won {
		t.Fatal("first setnx should win")
	}
	won, err = s.SetNX(ctx, "guard", []byte("2"))
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if won {
		t.Fatal("second setnx should lose")
	}
	v, _, _ := s.Get(ctx, "guard")
	if string(v) != "1" {
		t.Fatalf("loser overwrote value: %q", v)
	}
}

func TestGetDelConsumesOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "once", []byte("payload")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.GetDel(ctx, "once")
	if err != nil || !ok {
		t.Fatalf("first getdel: ok=%v err=%v", ok, err)
	}
	if string(v) != "payload" {
		t.Fatalf("got %q", v)
	}
	_, ok, err = s.GetDel(ctx, "once")
	if err != nil {
		t.Fatalf("second getdel: %v", err)
	}
	if ok {
		t.Fatal("second getdel should find nothing")
	}
}

func TestIDListsPreserveOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	in := []int64{30, 10, 20}
	if err := s.SetIDs(ctx, "stream", in); err != nil {
		t.Fatalf("setids: %v", err)
	}
	out, ok, err := s.GetIDs(ctx, "stream")
	if err != nil || !ok {
		t.Fatalf("getids: ok=%v err=%v", ok, err)
	}
	if !slices.Equal(out, in) {
		t.Fatalf("order not preserved: %v", out)
	}
}

func TestAddIDsDedupesAndSorts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.AddIDs(ctx, "replies", 5, 3); err != nil {
		t.Fatalf("addids: %v", err)
	}
	if err := s.AddIDs(ctx, "replies", 3, 9, 1); err != nil {
		t.Fatalf("addids: %v", err)
	}
	out, ok, err := s.GetIDs(ctx, "replies")
	if err != nil || !ok {
		t.Fatalf("getids: ok=%v err=%v", ok, err)
	}
	want := []int64{1, 3, 5, 9}
	if !slices.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}

func TestDeleteAbsentKey(t *testing.T) {
	s := openStore(t)
	if err := s.Delete(context.Background(), "nothing"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}
