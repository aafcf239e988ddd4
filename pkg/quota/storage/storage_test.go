package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"edustack-hq/turnstile/pkg/quota"
)

var (
	dayStart = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	dayEnd   = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	monStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	monEnd   = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

func sampleMutations(userID string, in, out int64) []quota.Mutation {
	return []quota.Mutation{
		{
			UserID: userID, PeriodType: quota.PeriodDaily,
			PeriodStart: dayStart, PeriodEnd: dayEnd,
			Endpoint: "/api/generate", Requests: 1,
			InputTokens: in, OutputTokens: out, Cost: 0.001,
		},
		{
			UserID: userID, PeriodType: quota.PeriodMonthly,
			PeriodStart: monStart, PeriodEnd: monEnd,
			Endpoint: "/api/generate", Requests: 1,
			InputTokens: in, OutputTokens: out, Cost: 0.001,
		},
	}
}

// backendTest exercises the Backend contract against any
// implementation.
func backendTest(t *testing.T, backend quota.Backend) {
	ctx := context.Background()

	t.Run("get missing returns nil", func(t *testing.T) {
		rec, err := backend.Get(ctx, "nobody", quota.PeriodDaily, dayStart)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil, got %+v", rec)
		}
	})

	t.Run("apply creates and accumulates", func(t *testing.T) {
		if err := backend.Apply(ctx, sampleMutations("u1", 100, 50)...); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if err := backend.Apply(ctx, sampleMutations("u1", 200, 100)...); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		rec, err := backend.Get(ctx, "u1", quota.PeriodDaily, dayStart)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec == nil {
			t.Fatal("Get returned nil after Apply")
		}
		if rec.TotalRequests != 2 || rec.TotalInputTokens != 300 || rec.TotalOutputTokens != 150 {
			t.Errorf("daily record = %+v", rec)
		}
		if rec.TotalTokens != 450 {
			t.Errorf("TotalTokens = %d, want 450", rec.TotalTokens)
		}
		if !rec.PeriodStart.Equal(dayStart) || !rec.PeriodEnd.Equal(dayEnd) {
			t.Errorf("period = [%v, %v), want [%v, %v)", rec.PeriodStart, rec.PeriodEnd, dayStart, dayEnd)
		}

		e := rec.Endpoints["/api/generate"]
		if e.Requests != 2 || e.TotalTokens != 450 {
			t.Errorf("endpoint usage = %+v", e)
		}

		monthly, err := backend.Get(ctx, "u1", quota.PeriodMonthly, monStart)
		if err != nil {
			t.Fatalf("Get monthly: %v", err)
		}
		if monthly == nil || monthly.TotalRequests != 2 {
			t.Errorf("monthly record = %+v", monthly)
		}
	})

	t.Run("list returns records for the period only", func(t *testing.T) {
		if err := backend.Apply(ctx, sampleMutations("u2", 10, 5)...); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		records, err := backend.List(ctx, quota.PeriodDaily, dayStart)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d daily records, want 2", len(records))
		}
		for _, rec := range records {
			if rec.PeriodType != quota.PeriodDaily {
				t.Errorf("unexpected period type %q", rec.PeriodType)
			}
		}

		records, err = backend.List(ctx, quota.PeriodDaily, dayStart.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("got %d records for empty period, want 0", len(records))
		}
	})

	t.Run("empty user id rejected", func(t *testing.T) {
		muts := sampleMutations("", 1, 1)
		if err := backend.Apply(ctx, muts...); err == nil {
			t.Error("expected error for empty user id")
		}
	})

	t.Run("concurrent apply", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = backend.Apply(ctx, sampleMutations("concurrent", 10, 10)...)
			}()
		}
		wg.Wait()

		rec, err := backend.Get(ctx, "concurrent", quota.PeriodDaily, dayStart)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec == nil || rec.TotalRequests != 20 {
			t.Errorf("lost updates under concurrency: %+v", rec)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()
	backendTest(t, backend)
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	defer backend.Close()

	if err := backend.Apply(ctx, sampleMutations("u1", 100, 50)...); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rec, _ := backend.Get(ctx, "u1", quota.PeriodDaily, dayStart)
	rec.TotalRequests = 999
	rec.Endpoints["/api/generate"] = quota.EndpointUsage{Requests: 999}

	fresh, _ := backend.Get(ctx, "u1", quota.PeriodDaily, dayStart)
	if fresh.TotalRequests != 1 {
		t.Error("mutating a returned record leaked into the store")
	}
	if fresh.Endpoints["/api/generate"].Requests != 1 {
		t.Error("mutating a returned endpoint map leaked into the store")
	}
}

func TestSQLiteBackend(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer backend.Close()
	backendTest(t, backend)
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage.db")

	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	if err := backend.Apply(ctx, sampleMutations("u1", 100, 50)...); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, err := reopened.Get(ctx, "u1", quota.PeriodDaily, dayStart)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.TotalInputTokens != 100 {
		t.Errorf("record did not survive reopen: %+v", rec)
	}
	if rec.Endpoints["/api/generate"].Requests != 1 {
		t.Errorf("endpoint breakdown did not survive reopen: %+v", rec.Endpoints)
	}
}

func TestSQLiteBackend_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteBackend(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteBackend_CloseIdempotent(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := backend.Close(); err != nil {
			t.Fatalf("Close %d: %v", i, err)
		}
	}
}

func TestSQLiteBackend_ManyUsers(t *testing.T) {
	ctx := context.Background()
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer backend.Close()

	for i := 0; i < 50; i++ {
		user := fmt.Sprintf("user-%02d", i)
		if err := backend.Apply(ctx, sampleMutations(user, int64(i), int64(i))...); err != nil {
			t.Fatalf("Apply %s: %v", user, err)
		}
	}

	records, err := backend.List(ctx, quota.PeriodMonthly, monStart)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 50 {
		t.Errorf("got %d monthly records, want 50", len(records))
	}
}
