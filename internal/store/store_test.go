package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHistorySeenAndMark(t *testing.T) {
	h := NewHistory(100, 0.01)

	if h.Seen("GBUM71029604") {
		t.Error("unmarked track reported as seen")
	}
	h.Mark("GBUM71029604")
	if !h.Seen("GBUM71029604") {
		t.Error("marked track not reported as seen")
	}
	if h.Seen("") {
		t.Error("empty identity must never be seen")
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(10, 0.01)
	for i := range 50 {
		h.Mark(fmt.Sprintf("track-%d", i))
	}
	if got := h.Len(); got > 10 {
		t.Errorf("Len() = %d, want at most capacity 10", got)
	}
	if !h.Seen("track-49") {
		t.Error("most recent entry should survive eviction")
	}
}

func TestTokenCacheFetchesAndMemoizes(t *testing.T) {
	calls := 0
	cache := NewTokenCache(
		filepath.Join(t.TempDir(), "token.json"),
		func(context.Context) (Token, error) {
			calls++
			return Token{Value: "tok", Expiry: time.Now().Add(time.Hour)}, nil
		},
		zap.NewNop(),
	)

	for range 3 {
		got, err := cache.GetValidToken(context.Background())
		if err != nil {
			t.Fatalf("GetValidToken() error = %v", err)
		}
		if got != "tok" {
			t.Errorf("GetValidToken() = %q, want tok", got)
		}
	}
	if calls != 1 {
		t.Errorf("fetch ran %d times, want 1", calls)
	}
}

func TestTokenCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	first := NewTokenCache(path, func(context.Context) (Token, error) {
		return Token{Value: "persisted", Expiry: time.Now().Add(time.Hour)}, nil
	}, zap.NewNop())
	if _, err := first.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}

	second := NewTokenCache(path, func(context.Context) (Token, error) {
		t.Fatal("fetch should not run when a valid token is on disk")
		return Token{}, nil
	}, zap.NewNop())
	got, err := second.GetValidToken(context.Background())
	if err != nil || got != "persisted" {
		t.Errorf("GetValidToken() = %q, %v; want persisted token from disk", got, err)
	}
}

func TestTokenCacheRefreshesExpired(t *testing.T) {
	calls := 0
	cache := NewTokenCache(
		filepath.Join(t.TempDir(), "token.json"),
		func(context.Context) (Token, error) {
			calls++
			return Token{Value: fmt.Sprintf("tok-%d", calls), Expiry: time.Now().Add(-time.Minute)}, nil
		},
		zap.NewNop(),
	)
	cache.cooldown = time.Millisecond

	got, err := cache.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	// Even a short-lived response is returned once fetched; the next call
	// refreshes because it is already expired.
	if got != "tok-1" {
		t.Errorf("GetValidToken() = %q, want tok-1", got)
	}
	if _, err := cache.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch ran %d times, want refresh on expiry", calls)
	}
}

func TestTokenCacheGivesUpAfterRetries(t *testing.T) {
	calls := 0
	cache := NewTokenCache(
		filepath.Join(t.TempDir(), "token.json"),
		func(context.Context) (Token, error) {
			calls++
			return Token{}, errors.New("provider down")
		},
		zap.NewNop(),
	)
	cache.cooldown = time.Millisecond

	if _, err := cache.GetValidToken(context.Background()); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != defaultRetries {
		t.Errorf("fetch ran %d times, want %d", calls, defaultRetries)
	}
}
