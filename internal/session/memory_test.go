package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte(`{"state":"collecting"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"state":"collecting"}` {
		t.Errorf("data = %s", data)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.Touch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("touch err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired entry should be gone, err = %v", err)
	}
}

func TestMemoryStoreTouchExtends(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		if err := s.Touch(ctx, "s1"); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}
	if _, err := s.Get(ctx, "s1"); err != nil {
		t.Errorf("touched entry should survive, err = %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreGetCopies(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte("abc")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, _ := s.Get(ctx, "s1")
	data[0] = 'z'
	again, _ := s.Get(ctx, "s1")
	if string(again) != "abc" {
		t.Errorf("store data mutated through returned slice: %s", again)
	}
}
