//go:build !integration

// File: internal/infra/storage/filestore_test.go
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"imagine-service/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "https://svc.test", "test-secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("should round trip a blob", func(t *testing.T) {
		key := "uploads/user-1/job-1/cat.jpg"
		if err := s.Put(ctx, key, []byte("jpeg-bytes"), "image/jpeg"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		data, ct, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("wrong data: %q", data)
		}
		if ct != "image/jpeg" {
			t.Errorf("wrong content type: %s", ct)
		}
	})

	t.Run("should return not found for a missing key", func(t *testing.T) {
		_, _, err := s.Get(ctx, "uploads/user-1/job-x/missing.jpg")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("should reject keys that escape the storage root", func(t *testing.T) {
		for _, key := range []string{"../etc/passwd", "a/../../etc/passwd", ".", ""} {
			if err := s.Put(ctx, key, []byte("x"), "text/plain"); err == nil {
				t.Errorf("key %q must be rejected", key)
			}
		}
	})

	t.Run("should normalize a leading slash rather than reject it", func(t *testing.T) {
		if err := s.Put(ctx, "/uploads/u/f.jpg", []byte("x"), "image/jpeg"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, _, err := s.Get(ctx, "uploads/u/f.jpg"); err != nil {
			t.Errorf("normalized key not readable: %v", err)
		}
	})
}

func TestFileStoreSignedURL(t *testing.T) {
	s := newTestStore(t)
	key := "results/user-1/job-1/result_1.jpg"

	t.Run("should mint a redeemable token", func(t *testing.T) {
		signed, err := s.SignedURL(key, time.Minute)
		if err != nil {
			t.Fatalf("SignedURL: %v", err)
		}
		if !strings.HasPrefix(signed, "https://svc.test/files?token=") {
			t.Fatalf("unexpected url shape: %s", signed)
		}

		u, err := url.Parse(signed)
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.VerifyToken(u.Query().Get("token"))
		if err != nil {
			t.Fatalf("VerifyToken: %v", err)
		}
		if got != key {
			t.Errorf("token resolves to %q, want %q", got, key)
		}
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		signed, err := s.SignedURL(key, -time.Minute)
		if err != nil {
			t.Fatalf("SignedURL: %v", err)
		}
		u, _ := url.Parse(signed)
		_, err = s.VerifyToken(u.Query().Get("token"))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got: %v", err)
		}
	})

	t.Run("should reject a token signed with a different secret", func(t *testing.T) {
		other, err := NewFileStore(t.TempDir(), "https://svc.test", "other-secret")
		if err != nil {
			t.Fatal(err)
		}
		signed, err := other.SignedURL(key, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		u, _ := url.Parse(signed)
		if _, err := s.VerifyToken(u.Query().Get("token")); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got: %v", err)
		}
	})

	t.Run("should reject garbage tokens", func(t *testing.T) {
		if _, err := s.VerifyToken("not-a-jwt"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got: %v", err)
		}
	})
}
