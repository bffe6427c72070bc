package kv

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func openTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := OpenRedis(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestRedis(t)

	if _, err := s.Get(ctx, "ns", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "ns", "/a.txt", []byte("hello")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "ns", "/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("get = %q, want %q", got, "hello")
	}

	if err := s.Delete(ctx, "ns", "/a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "ns", "/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisKeysPrefix(t *testing.T) {
	ctx := context.Background()
	s := openTestRedis(t)

	for _, k := range []string{"/b.txt", "/sub/a.txt", "/sub/c.txt"} {
		if err := s.Set(ctx, "ns", k, []byte("x")); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	// Same key in a different namespace must not leak into the listing.
	if err := s.Set(ctx, "other", "/sub/a.txt", []byte("x")); err != nil {
		t.Fatalf("set other ns: %v", err)
	}

	keys, err := s.Keys(ctx, "ns", "/sub/")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := []string{"/sub/a.txt", "/sub/c.txt"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestOpenRedisBadURL(t *testing.T) {
	if _, err := OpenRedis(RedisOptions{URL: "://nope"}); err == nil {
		t.Fatalf("expected error for malformed URL")
	}
}
