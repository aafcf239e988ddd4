package admission

import (
	"sync"
	"testing"
	"time"

	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/tiers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestController(t *testing.T, cfg Config, clock *fakeClock) *Controller {
	t.Helper()
	cfg.Now = clock.Now
	c := NewController(cfg, tiers.DefaultCatalog(), identity.NewResolver(nil), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func freeUser(ip string) identity.RequestInfo {
	return identity.RequestInfo{
		User:       &identity.Principal{UserID: "u1", Tier: tiers.TierFree},
		RemoteAddr: ip,
	}
}

// Free tier allows exactly requests_per_minute requests in a minute;
// the next one is denied with a per-minute retry hint.
func TestCheck_FreeTierMinuteLimit(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{IPPerMinute: 1000, IPPerHour: 100000}, clock)

	rpm := tiers.DefaultLimits()[tiers.TierFree].RequestsPerMinute

	for i := 0; i < rpm; i++ {
		d := c.Check("/api/generate", freeUser("10.0.0.1:1234"))
		if !d.Allowed {
			t.Fatalf("request %d denied: %+v", i+1, d)
		}
		clock.Advance(time.Second)
	}

	d := c.Check("/api/generate", freeUser("10.0.0.1:1234"))
	if d.Allowed {
		t.Fatal("request past minute limit was allowed")
	}
	if d.Limit != LimitPerMinute {
		t.Errorf("Limit = %q, want %q", d.Limit, LimitPerMinute)
	}
	if d.Message != MsgUserMinute {
		t.Errorf("Message = %q, want %q", d.Message, MsgUserMinute)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 60 {
		t.Errorf("RetryAfter = %d, want in (0, 60]", d.RetryAfter)
	}
}

// Hammering past twice the minute limit escalates into a temporary
// block; while blocked, retry hints shrink as time passes, and once
// the block expires the next check is evaluated fresh.
func TestCheck_EscalationBlock(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{IPPerMinute: 100000, IPPerHour: 1000000}, clock)

	rpm := tiers.DefaultLimits()[tiers.TierFree].RequestsPerMinute

	var last Decision
	for i := 0; i < 2*rpm+1; i++ {
		last = c.Check("/api/generate", freeUser("10.0.0.1:1"))
	}
	if last.Allowed {
		t.Fatal("expected denial at 2x limit")
	}

	// The identifier is now blocked.
	d := c.Check("/api/generate", freeUser("10.0.0.1:1"))
	if d.Allowed || d.Error != ReasonBlocked {
		t.Fatalf("expected temporarily_blocked, got %+v", d)
	}
	if d.Message != MsgBlocked {
		t.Errorf("Message = %q, want %q", d.Message, MsgBlocked)
	}
	firstRetry := d.RetryAfter

	clock.Advance(2 * time.Minute)
	d = c.Check("/api/generate", freeUser("10.0.0.1:1"))
	if d.Error != ReasonBlocked {
		t.Fatalf("expected still blocked, got %+v", d)
	}
	if d.RetryAfter >= firstRetry {
		t.Errorf("RetryAfter did not decrease: %d -> %d", firstRetry, d.RetryAfter)
	}

	// Past the block deadline the minute window has drained and the
	// check runs fresh.
	clock.Advance(5 * time.Minute)
	d = c.Check("/api/generate", freeUser("10.0.0.1:1"))
	if !d.Allowed {
		t.Fatalf("expected fresh evaluation after block expiry, got %+v", d)
	}
}

// The global ceilings shed load before any per-user check and protect
// the upstream from the aggregate of all callers.
func TestCheck_GlobalLoadShedding(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{
		GlobalPerMinute: 5,
		GlobalPerHour:   100000,
		IPPerMinute:     100000,
		IPPerHour:       1000000,
	}, clock)

	// Five distinct premium users stay under every per-user limit.
	for i := 0; i < 5; i++ {
		info := identity.RequestInfo{
			User:       &identity.Principal{UserID: string(rune('a' + i)), Tier: tiers.TierPremium},
			RemoteAddr: "10.0.0.1:1",
		}
		if d := c.Check("/api/generate", info); !d.Allowed {
			t.Fatalf("request %d denied: %+v", i+1, d)
		}
	}

	d := c.Check("/api/generate", identity.RequestInfo{
		User:       &identity.Principal{UserID: "z", Tier: tiers.TierPremium},
		RemoteAddr: "10.0.0.1:1",
	})
	if d.Allowed {
		t.Fatal("expected global load shedding")
	}
	if d.Error != ReasonGlobal || d.Message != MsgGlobalLoad {
		t.Errorf("unexpected denial: %+v", d)
	}
	if d.RetryAfter != retryGlobalLoad {
		t.Errorf("RetryAfter = %d, want %d", d.RetryAfter, retryGlobalLoad)
	}
}

// An anonymous IP that keeps hammering past three times the IP minute
// ceiling gets blocked on the request that crosses the threshold.
func TestCheck_IPEscalation(t *testing.T) {
	clock := newFakeClock()
	ipLimit := 5
	c := newTestController(t, Config{IPPerMinute: ipLimit, IPPerHour: 100000}, clock)

	anon := identity.RequestInfo{RemoteAddr: "198.51.100.9:4000"}

	for i := 1; i <= 3*ipLimit; i++ {
		d := c.Check("/api/generate", anon)
		if i <= ipLimit && !d.Allowed {
			t.Fatalf("request %d denied: %+v", i, d)
		}
		if i > ipLimit {
			if d.Allowed {
				t.Fatalf("request %d past IP limit allowed", i)
			}
			if d.Message != MsgIPMinute {
				t.Fatalf("request %d message = %q, want %q", i, d.Message, MsgIPMinute)
			}
		}
	}

	// The crossing request triggers the 10-minute block.
	d := c.Check("/api/generate", anon)
	if d.Allowed || d.Message != MsgIPMinute {
		t.Fatalf("crossing request: %+v", d)
	}

	d = c.Check("/api/generate", anon)
	if d.Error != ReasonBlocked {
		t.Fatalf("expected IP to be blocked, got %+v", d)
	}
	if d.RetryAfter > 600 || d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %d, want in (0, 600]", d.RetryAfter)
	}
}

// IP ceilings apply even when the user-level checks pass.
func TestCheck_IPLimitAppliesToIdentifiedUsers(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{IPPerMinute: 3, IPPerHour: 100000}, clock)

	info := identity.RequestInfo{
		User:       &identity.Principal{UserID: "u9", Tier: tiers.TierUnlimited},
		RemoteAddr: "10.1.1.1:1",
	}

	for i := 0; i < 3; i++ {
		if d := c.Check("/api/generate", info); !d.Allowed {
			t.Fatalf("request %d denied: %+v", i+1, d)
		}
	}

	d := c.Check("/api/generate", info)
	if d.Allowed || d.Message != MsgIPMinute {
		t.Fatalf("expected IP denial for identified user, got %+v", d)
	}
}

func TestCheck_HourlyLimit(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{IPPerMinute: 100000, IPPerHour: 1000000}, clock)

	rph := tiers.DefaultLimits()[tiers.TierFree].RequestsPerHour

	// Space requests so the minute window stays under its limit while
	// the hour window fills.
	var d Decision
	for i := 0; i < rph+1; i++ {
		d = c.Check("/api/generate", freeUser("10.0.0.1:1"))
		clock.Advance(7 * time.Second)
	}

	if d.Allowed {
		t.Fatal("expected hourly denial")
	}
	if d.Limit != LimitPerHour || d.Message != MsgUserHour {
		t.Errorf("unexpected denial: %+v", d)
	}
	if d.RetryAfter != retryHour {
		t.Errorf("RetryAfter = %d, want %d", d.RetryAfter, retryHour)
	}
}

func TestCheck_NeverPanicsOnEmptyContext(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{}, clock)

	d := c.Check("/api/generate", identity.RequestInfo{})
	if !d.Allowed {
		t.Fatalf("first anonymous request denied: %+v", d)
	}
	if d.Identity.Tier != tiers.TierLimited {
		t.Errorf("anonymous tier = %q, want %q", d.Identity.Tier, tiers.TierLimited)
	}
}

func TestGlobalUtilization(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{GlobalPerMinute: 10, GlobalPerHour: 100, IPPerMinute: 1000, IPPerHour: 10000}, clock)

	for i := 0; i < 5; i++ {
		c.Check("/api/generate", identity.RequestInfo{RemoteAddr: "10.0.0.1:1"})
	}

	util := c.GlobalUtilization()
	if util[0].Used != 5 || util[0].Limit != 10 {
		t.Errorf("minute utilization = %+v", util[0])
	}
	if util[0].Ratio != 0.5 {
		t.Errorf("minute ratio = %v, want 0.5", util[0].Ratio)
	}
}

func TestCheck_ConcurrentSameUser(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(t, Config{GlobalPerMinute: 100000, GlobalPerHour: 1000000, IPPerMinute: 100000, IPPerHour: 1000000}, clock)

	rpm := tiers.DefaultLimits()[tiers.TierFree].RequestsPerMinute

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 4*rpm; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := c.Check("/api/generate", freeUser("10.0.0.1:1")); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// The per-identifier lock serializes decisions: no more than the
	// minute limit may be admitted.
	if allowed > rpm {
		t.Errorf("admitted %d concurrent requests, limit is %d", allowed, rpm)
	}
}
