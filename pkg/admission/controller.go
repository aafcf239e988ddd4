package admission

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"edustack-hq/turnstile/pkg/admission/blocklist"
	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/admission/ratelimit"
	"edustack-hq/turnstile/pkg/tiers"
)

// Retry hints in seconds for each denial branch.
const (
	retryMinute     = 60
	retryHour       = 300
	retryDay        = 3600
	retryGlobalLoad = 60
	retryGlobalHour = 300
)

// Config configures the admission controller.
type Config struct {
	// GlobalPerMinute is the aggregate 1-minute ceiling across all
	// identities. Protects the shared upstream budget. Default: 1000.
	GlobalPerMinute int

	// GlobalPerHour is the aggregate 1-hour ceiling. Default: 20000.
	GlobalPerHour int

	// IPPerMinute is the per-IP 1-minute ceiling applied to every
	// request regardless of user-level limits. Default: 20.
	IPPerMinute int

	// IPPerHour is the per-IP 1-hour ceiling. Default: 200.
	IPPerHour int

	// WindowCapacity bounds each per-key window sequence.
	// Default: 10000.
	WindowCapacity int

	// UserBlockDuration is the escalation block applied when a
	// user's minute count exceeds twice the tier limit.
	// Default: 5 minutes.
	UserBlockDuration time.Duration

	// IPBlockDuration is the escalation block applied when an IP's
	// minute count exceeds three times the IP ceiling.
	// Default: 10 minutes.
	IPBlockDuration time.Duration

	// JanitorInterval is how often idle counter keys are pruned.
	// Default: 1 minute.
	JanitorInterval time.Duration

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.GlobalPerMinute == 0 {
		c.GlobalPerMinute = 1000
	}
	if c.GlobalPerHour == 0 {
		c.GlobalPerHour = 20000
	}
	if c.IPPerMinute == 0 {
		c.IPPerMinute = 20
	}
	if c.IPPerHour == 0 {
		c.IPPerHour = 200
	}
	if c.WindowCapacity <= 0 {
		c.WindowCapacity = 10000
	}
	if c.UserBlockDuration <= 0 {
		c.UserBlockDuration = 5 * time.Minute
	}
	if c.IPBlockDuration <= 0 {
		c.IPBlockDuration = 10 * time.Minute
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Controller is the admission gate. Construct one per process with
// NewController and share it by reference; all methods are safe for
// concurrent use.
type Controller struct {
	config   Config
	catalog  *tiers.Catalog
	resolver *identity.Resolver
	blocks   *blocklist.Registry
	users    *ratelimit.Counter
	ips      *ratelimit.Counter
	global   *ratelimit.Aggregate
	metrics  *Metrics
	logger   *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewController creates an admission controller with the given tier
// catalog and identity resolver. Metrics may be nil to disable
// instrumentation (tests). The janitor goroutine starts immediately;
// call Close to stop it.
func NewController(cfg Config, catalog *tiers.Catalog, resolver *identity.Resolver, metrics *Metrics) *Controller {
	cfg.applyDefaults()

	windowCfg := ratelimit.Config{
		Capacity:  cfg.WindowCapacity,
		Retention: 24 * time.Hour,
		Now:       cfg.Now,
	}

	c := &Controller{
		config:   cfg,
		catalog:  catalog,
		resolver: resolver,
		blocks:   blocklist.NewRegistry(cfg.Now),
		users:    ratelimit.NewCounter(windowCfg),
		ips:      ratelimit.NewCounter(windowCfg),
		global:   ratelimit.NewAggregate(windowCfg),
		metrics:  metrics,
		logger:   slog.Default().With("component", "admission"),
		done:     make(chan struct{}),
	}

	go c.janitorLoop()

	return c
}

// Close stops the janitor goroutine.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Check decides whether a request to endpoint may proceed.
//
// The checks run in a fixed order and short-circuit on the first
// violation: block registry, global load shedding, per-user tier
// ceilings, per-IP ceilings. Every attempt that reaches the counters
// is recorded in the user, IP, and global windows whether or not it is
// ultimately admitted; the escalation thresholds (2x the user minute
// limit, 3x the IP minute ceiling) are measured against attempt
// counts, so a denied caller that keeps hammering still escalates into
// a temporary block. Requests from an already-blocked identifier are
// rejected before the counters and do not extend the block.
//
// Check never returns an error; a denial is a normal, structured
// outcome.
func (c *Controller) Check(endpoint string, info identity.RequestInfo) Decision {
	start := c.config.Now()
	decision := c.check(endpoint, info)
	c.metrics.RecordCheck(decision.Allowed, c.config.Now().Sub(start).Seconds())
	if !decision.Allowed {
		c.metrics.RecordDenial(decision.Error, decision.Limit)
		c.logger.Debug("request denied",
			"identifier", decision.Identity.Identifier(),
			"endpoint", endpoint,
			"reason", decision.Error,
			"retry_after", decision.RetryAfter,
		)
	}
	return decision
}

func (c *Controller) check(endpoint string, info identity.RequestInfo) Decision {
	id := c.resolver.Resolve(info)
	identifier := id.Identifier()

	// 1. Temporary blocks deny before anything is counted.
	if blocked, remaining := c.blocks.IsBlocked(identifier); blocked {
		return deny(id, ReasonBlocked, MsgBlocked, "", ceilSeconds(remaining))
	}

	// 2. Record the attempt in every scope, collecting the counts in
	// the same locked operation so concurrent requests for one
	// identifier observe each other. Counts include this attempt.
	globalCounts := c.global.AddAndCount(endpoint, time.Minute, time.Hour)
	ipCounts := c.ips.AddAndCount(id.IP, endpoint, time.Minute, time.Hour)
	var userCounts []int
	if !id.Anonymous() {
		userCounts = c.users.AddAndCount(id.UserID, endpoint, time.Minute, time.Hour, 24*time.Hour)
	}

	// 3. Global load shedding runs before any per-user check: the
	// shared upstream budget must survive the aggregate of all
	// callers, well-behaved or not.
	if c.config.GlobalPerMinute > 0 && globalCounts[0] > c.config.GlobalPerMinute {
		return deny(id, ReasonGlobal, MsgGlobalLoad, "", retryGlobalLoad)
	}
	if c.config.GlobalPerHour > 0 && globalCounts[1] > c.config.GlobalPerHour {
		return deny(id, ReasonGlobal, MsgGlobalLoad, "", retryGlobalHour)
	}

	// 4. Per-user tier ceilings.
	if !id.Anonymous() {
		limits, known := c.catalog.Lookup(id.Tier)
		if !known {
			c.logger.Warn("unknown tier, failing closed to limited",
				"tier", id.Tier, "user_id", id.UserID)
		}

		minuteCount := userCounts[0]

		// Burst applies only while the nominal minute limit has
		// not been reached; past it, no burst is granted.
		effective := limits.RequestsPerMinute
		if minuteCount <= limits.RequestsPerMinute {
			effective = limits.RequestsPerMinute + limits.BurstSize
		}

		if minuteCount > effective {
			if minuteCount > 2*limits.RequestsPerMinute {
				c.blocks.Block(identifier, c.config.UserBlockDuration)
				c.metrics.RecordBlock("user")
				c.logger.Warn("identifier blocked after repeated violations",
					"identifier", identifier,
					"minute_count", minuteCount,
					"limit", limits.RequestsPerMinute,
					"duration", c.config.UserBlockDuration,
				)
			}
			return deny(id, ReasonRateLimit, MsgUserMinute, LimitPerMinute, retryMinute)
		}
		if userCounts[1] > limits.RequestsPerHour {
			return deny(id, ReasonRateLimit, MsgUserHour, LimitPerHour, retryHour)
		}
		if userCounts[2] > limits.RequestsPerDay {
			return deny(id, ReasonRateLimit, MsgUserDay, LimitPerDay, retryDay)
		}
	}

	// 5. Per-IP ceilings always apply, even when a user-level check
	// already passed: they catch abuse spread across accounts or
	// carried out anonymously.
	if c.config.IPPerMinute > 0 && ipCounts[0] > c.config.IPPerMinute {
		if ipCounts[0] > 3*c.config.IPPerMinute {
			c.blocks.Block(id.IP, c.config.IPBlockDuration)
			c.metrics.RecordBlock("ip")
			c.logger.Warn("ip blocked after repeated violations",
				"ip", id.IP,
				"minute_count", ipCounts[0],
				"limit", c.config.IPPerMinute,
				"duration", c.config.IPBlockDuration,
			)
		}
		return deny(id, ReasonRateLimit, MsgIPMinute, LimitPerMinute, retryMinute)
	}
	if c.config.IPPerHour > 0 && ipCounts[1] > c.config.IPPerHour {
		return deny(id, ReasonRateLimit, MsgIPHour, LimitPerHour, retryHour)
	}

	return allow(id)
}

// GlobalUtilization returns used/limit for the global minute and hour
// windows. Health endpoints classify the ratios.
func (c *Controller) GlobalUtilization() []WindowUtilization {
	return []WindowUtilization{
		utilization("global", "minute", c.global.CountWithin(time.Minute), c.config.GlobalPerMinute),
		utilization("global", "hour", c.global.CountWithin(time.Hour), c.config.GlobalPerHour),
	}
}

// UserUtilization returns used/limit per window for one user under the
// named tier. Used by the admin surface.
func (c *Controller) UserUtilization(userID, tierName string) []WindowUtilization {
	limits, _ := c.catalog.Lookup(tierName)
	return []WindowUtilization{
		utilization("user", "minute", c.users.CountWithin(userID, time.Minute), limits.RequestsPerMinute),
		utilization("user", "hour", c.users.CountWithin(userID, time.Hour), limits.RequestsPerHour),
		utilization("user", "day", c.users.CountWithin(userID, 24*time.Hour), limits.RequestsPerDay),
	}
}

// ActiveBlocks returns the currently blocked identifiers and their
// expiry deadlines.
func (c *Controller) ActiveBlocks() map[string]time.Time {
	return c.blocks.Active()
}

// Unblock lifts a block ahead of its deadline. Admin use only.
func (c *Controller) Unblock(identifier string) {
	c.blocks.Unblock(identifier)
}

// janitorLoop periodically prunes idle counter keys and refreshes the
// tracked-key gauges. Block entries expire lazily and are not swept.
func (c *Controller) janitorLoop() {
	ticker := time.NewTicker(c.config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.users.PruneIdle()
			c.ips.PruneIdle()
			c.metrics.UpdateTrackedKeys("user", c.users.Keys())
			c.metrics.UpdateTrackedKeys("ip", c.ips.Keys())
		case <-c.done:
			return
		}
	}
}

func utilization(scope, window string, used, limit int) WindowUtilization {
	u := WindowUtilization{Scope: scope, Window: window, Used: used, Limit: limit}
	if limit > 0 {
		u.Ratio = float64(used) / float64(limit)
	}
	return u
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
