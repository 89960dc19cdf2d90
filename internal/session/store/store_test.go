package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess := s.Create(ctx)
	if sess.ID == "" {
		t.Fatal("Create should assign an id")
	}
	if sess.Bound() {
		t.Error("new session should be unbound")
	}
	got, ok := s.Get(ctx, sess.ID)
	if !ok {
		t.Fatal("Get should return created session")
	}
	if got.ID != sess.ID {
		t.Errorf("ID = %q, want %q", got.ID, sess.ID)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if _, ok := s.Get(context.Background(), "nonexistent"); ok {
		t.Error("Get should return false when session is missing")
	}
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sess := s.Create(ctx)

	updated, ok := s.Update(ctx, sess.ID, func(d *domain.Session) {
		d.Folder = "/root/tmp/1/demo"
		d.Writable = true
	})
	if !ok {
		t.Fatal("Update should succeed for existing session")
	}
	if !updated.Bound() || !updated.Writable {
		t.Errorf("Update result = %+v", updated)
	}
	got, _ := s.Get(ctx, sess.ID)
	if got.Folder != "/root/tmp/1/demo" {
		t.Errorf("stored Folder = %q", got.Folder)
	}

	called := false
	if _, ok := s.Update(ctx, "missing", func(*domain.Session) { called = true }); ok || called {
		t.Error("Update on missing session should return false without calling fn")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	now := time.Now()
	s.nowF = func() time.Time { return now }
	sess := s.Create(ctx)

	s.nowF = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := s.Get(ctx, sess.ID); ok {
		t.Error("Get should return false for expired session")
	}
	if _, ok := s.Update(ctx, sess.ID, func(*domain.Session) {}); ok {
		t.Error("Update should return false for expired session")
	}
}

func TestMemoryStore_UpdateExtendsLifetime(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	now := time.Now()
	s.nowF = func() time.Time { return now }
	sess := s.Create(ctx)

	s.nowF = func() time.Time { return now.Add(50 * time.Second) }
	if _, ok := s.Update(ctx, sess.ID, func(*domain.Session) {}); !ok {
		t.Fatal("Update before expiry should succeed")
	}
	s.nowF = func() time.Time { return now.Add(100 * time.Second) }
	if _, ok := s.Get(ctx, sess.ID); !ok {
		t.Error("session should still be live after an update extended it")
	}
}

func TestMemoryStore_GetKeepsSessionRefreshedDuringExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	now := time.Now()
	s.nowF = func() time.Time { return now }
	sess := s.Create(ctx)

	// Get reads the entry as expired at +70s; before it takes the write lock an Update made
	// at +30s extends the session to +90s.
	var refreshed, refreshing bool
	s.nowF = func() time.Time {
		if refreshing {
			return now.Add(30 * time.Second)
		}
		if !refreshed {
			refreshed, refreshing = true, true
			if _, ok := s.Update(ctx, sess.ID, func(*domain.Session) {}); !ok {
				t.Error("Update before expiry should succeed")
			}
			refreshing = false
		}
		return now.Add(70 * time.Second)
	}

	got, ok := s.Get(ctx, sess.ID)
	if !ok || got.ID != sess.ID {
		t.Fatalf("Get = %+v, %v; refreshed session must survive", got, ok)
	}
	if _, ok := s.Get(ctx, sess.ID); !ok {
		t.Error("refreshed session was deleted")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sess := s.Create(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Update(ctx, sess.ID, func(d *domain.Session) { d.LastTouch = time.Now() })
		}()
		go func() {
			defer wg.Done()
			s.Get(ctx, sess.ID)
		}()
	}
	wg.Wait()
}
