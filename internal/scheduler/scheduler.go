// Package scheduler drives the single long-lived polling loop (spec §4.6):
// it selects due sources, fans work units out under a global and a per-host
// semaphore, and walks each source through fetch → parse → normalize →
// insert → cluster → publish, with retention running hourly on the same
// timeline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/fetcher"
	"github.com/couchcryptid/sigwatch/internal/health"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
	"github.com/couchcryptid/sigwatch/internal/plugin"
)

// perHostConcurrency is the per-host limit of 1 from spec §4.6.1. The global
// limit is Config.GlobalConcurrency, which New sets to 4 when it is left at
// zero ("global concurrency semaphore of 4").
const perHostConcurrency = 1

// pollBatchSize is "up to 12" sources selected per pass (spec §4.6 step 2).
const pollBatchSize = 12

// idlePoll is the sleep applied when nothing is due or polling is paused
// (spec §4.6 step 4: "wait a short interval (~0.5s)").
const idlePoll = 500 * time.Millisecond

// retentionInterval is how often RunRetention fires (spec §4.6 step 5).
const retentionInterval = time.Hour

// Fetcher is the subset of *fetcher.Fetcher the scheduler needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, etag, lastModified string, extraHeaders map[string]string) (fetcher.Result, error)
}

// Health is the subset of *health.Tracker the scheduler needs.
type Health interface {
	RecordSuccess(ctx context.Context, src model.Source, status int, elapsedMS int64, etag, lastModified, outcome string, maxAgeSeconds int)
	RecordError(ctx context.Context, src model.Source, status *int, elapsedMS *int64, errorKind string) int
}

// Clusterer is the subset of *cluster.Clusterer the scheduler needs.
type Clusterer interface {
	Cluster(ctx context.Context, item model.Item) (model.Incident, model.EventType, error)
}

// Publisher is the narrow event-bus dependency.
type Publisher interface {
	Publish(evt model.Event)
}

// DynamicExpander reconciles the plugin registry against some externally
// discovered ID set (spec §4.6 step 10, §9: "Dynamic plugin registry" —
// e.g. a list of currently elevated volcanoes expanding into per-volcano
// plugins). Run once per poll cycle, before source selection. sync is
// passed through to plugin.Registry.SyncDynamic so a plugin the expander
// adds or drops gets its source row registered or disabled in the same
// pass — without it, due-selection would never see the change.
type DynamicExpander func(ctx context.Context, registry *plugin.Registry, sync plugin.SourceSync) error

// Config bundles the tunables spec §4.6 leaves to deployment.
type Config struct {
	GlobalConcurrency  int
	ItemsRetentionDays int
	IncidentsRetentionDays int
}

// Scheduler is the polling loop.
type Scheduler struct {
	store     Store
	registry  *plugin.Registry
	fetcher   Fetcher
	health    Health
	clusterer Clusterer
	bus       Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       Config
	expanders []DynamicExpander

	globalSem *semaphore.Weighted

	hostMu   sync.Mutex
	hostSems map[string]*semaphore.Weighted

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[fetcher.Result]

	lastRetention time.Time
}

// New builds a Scheduler.
func New(st Store, registry *plugin.Registry, f Fetcher, h Health, cl Clusterer, bus Publisher, logger *slog.Logger, metrics *observability.Metrics, cfg Config, expanders ...DynamicExpander) *Scheduler {
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = 4
	}
	return &Scheduler{
		store:     st,
		registry:  registry,
		fetcher:   f,
		health:    h,
		clusterer: cl,
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		expanders: expanders,
		globalSem: semaphore.NewWeighted(int64(cfg.GlobalConcurrency)),
		hostSems:  make(map[string]*semaphore.Weighted),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[fetcher.Result]),
	}
}

// RegisterPlugins upserts every currently registered plugin as a source row,
// so the store's due-selection has schedule state to work from. Call once
// at boot and again after any registry expansion.
func (s *Scheduler) RegisterPlugins(ctx context.Context) error {
	for _, p := range s.registry.All() {
		if err := s.store.RegisterSource(ctx, p.AsSource()); err != nil {
			return fmt.Errorf("scheduler: register %q: %w", p.SourceID, err)
		}
	}
	return nil
}

// Run executes the polling loop until ctx is cancelled (spec §4.6).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.lastRetention = clock.Get().Now()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if clock.Get().Now().Sub(s.lastRetention) >= retentionInterval {
			s.runRetention(ctx)
		}

		for _, exp := range s.expanders {
			if err := exp(ctx, s.registry, s.store); err != nil {
				s.logger.Error("scheduler: dynamic expander failed", "error", err)
			}
		}

		enabled, err := s.store.PollingEnabled(ctx)
		if err != nil {
			s.logger.Error("scheduler: read polling_enabled failed", "error", err)
			enabled = true
		}
		if !enabled {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}

		due, err := s.store.DueSources(ctx, clock.Get().Now(), pollBatchSize)
		if err != nil {
			s.logger.Error("scheduler: select due sources failed", "error", err)
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		s.metrics.SourcesDue.Set(float64(len(due)))

		if len(due) == 0 {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}

		var wg sync.WaitGroup
		for _, src := range due {
			p, ok := s.registry.Get(src.SourceID)
			if !ok {
				continue
			}
			if err := s.globalSem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(src model.Source, p plugin.Plugin) {
				defer wg.Done()
				defer s.globalSem.Release(1)
				s.runWorkUnit(ctx, src, p)
			}(src, p)
		}
		wg.Wait()
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	if err := s.store.RunRetention(ctx, s.cfg.ItemsRetentionDays, s.cfg.IncidentsRetentionDays); err != nil {
		s.logger.Error("scheduler: retention failed", "error", err)
		return
	}
	s.metrics.RetentionRuns.Inc()
	s.lastRetention = clock.Get().Now()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// hostSemaphore returns (creating if absent) the per-host semaphore for the
// given URL, keyed by host so a burst of due sources on the same upstream
// never runs more than one fetch at a time against it (spec §4.6.1).
func (s *Scheduler) hostSemaphore(rawURL string) *semaphore.Weighted {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	sem, ok := s.hostSems[host]
	if !ok {
		sem = semaphore.NewWeighted(perHostConcurrency)
		s.hostSems[host] = sem
	}
	return sem
}

// breakerFor returns the per-source circuit breaker, created on first use.
// It trips independently of the health tracker's backoff timer (spec §4.6
// step 4's transport-error path still runs through here; the breaker adds
// a fast-fail on top once a source is clearly down).
func (s *Scheduler) breakerFor(sourceID string) *gobreaker.CircuitBreaker[fetcher.Result] {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()
	cb, ok := s.breakers[sourceID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[fetcher.Result](gobreaker.Settings{
			Name:        sourceID,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && counts.TotalFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.logger.Warn("scheduler: circuit breaker state change", "source_id", name, "from", from, "to", to)
			},
		})
		s.breakers[sourceID] = cb
	}
	return cb
}

func classifyTransportErr(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return "circuit_open"
	}
	return "request_error:" + fmt.Sprintf("%T", err)
}

func parseStatusCode(code int) string {
	return "http_" + strconv.Itoa(code)
}
