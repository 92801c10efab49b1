package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/skywatch/opensky-scope/internal/cache"
	"github.com/skywatch/opensky-scope/internal/db"
	"github.com/skywatch/opensky-scope/internal/metrics"
	"github.com/skywatch/opensky-scope/pkg/config"
	"github.com/skywatch/opensky-scope/pkg/geodesy"
	"github.com/skywatch/opensky-scope/pkg/opensky"
	"github.com/skywatch/opensky-scope/pkg/tracking"
)

// Collector continuously polls the OpenSky Network, maintains the current
// snapshot, and optionally persists it so multiple consumers can share one
// API quota.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	log.Println("===========================================")
	log.Println("  OpenSky Snapshot Collector Service")
	log.Println("===========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded from: %s", *configPath)
	log.Printf("Upstream: %s", cfg.OpenSky.BaseURL)
	if cfg.OpenSky.Username != "" {
		log.Printf("Authenticated as: %s", cfg.OpenSky.Username)
	} else {
		log.Println("Anonymous access (10s time resolution)")
	}
	if cfg.Poll.Region != nil {
		log.Printf("Region: %s [%.4f..%.4f, %.4f..%.4f]",
			cfg.Poll.Region.Name,
			cfg.Poll.Region.MinLat, cfg.Poll.Region.MaxLat,
			cfg.Poll.Region.MinLon, cfg.Poll.Region.MaxLon)
	}
	log.Printf("Poll interval: %d seconds", cfg.Poll.IntervalSeconds)

	client := opensky.NewClient(opensky.Config{
		BaseURL:        cfg.OpenSky.BaseURL,
		Username:       cfg.OpenSky.Username,
		Password:       cfg.OpenSky.Password,
		Timeout:        time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		ObservationLag: time.Duration(cfg.OpenSky.ObservationLagSeconds) * time.Second,
	})

	// Optional persistence
	var repo *db.SnapshotRepository
	var database *db.DB
	if cfg.Database.Enabled {
		log.Println("Connecting to database...")
		database, err = db.ReconnectWithRetry(cfg.Database, 5, time.Second)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		ctx := context.Background()
		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		repo = db.NewSnapshotRepository(database)
		log.Println("Database connected, schema ready")
	}

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			log.Printf("Metrics listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	collector := &Collector{
		client:   client,
		repo:     repo,
		database: database,
		snapCache: cache.New(
			time.Duration(cfg.Poll.CacheTTLSeconds) * time.Second,
		),
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		horizon:  time.Duration(cfg.Poll.PredictionHorizonSeconds) * time.Second,
		observer: geodesy.Point{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
		},
		request: statesRequest(cfg.Poll),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	doneChan := make(chan struct{})
	go func() {
		defer close(doneChan)
		collector.Run(ctx)
	}()

	log.Println("Collector service started, press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		cancel()
		<-doneChan
	case <-doneChan:
		log.Println("Collector stopped")
	}

	log.Println("Collector service stopped")
}

func statesRequest(poll config.PollConfig) opensky.StatesRequest {
	req := opensky.StatesRequest{ICAO24: poll.ICAO24}
	if poll.Region != nil {
		req.Bounds = &opensky.BoundingBox{
			MinLat: poll.Region.MinLat,
			MaxLat: poll.Region.MaxLat,
			MinLon: poll.Region.MinLon,
			MaxLon: poll.Region.MaxLon,
		}
	}
	return req
}

// Collector manages the snapshot polling loop.
type Collector struct {
	client    *opensky.Client
	repo      *db.SnapshotRepository
	database  *db.DB
	snapCache *cache.SnapshotCache
	limiter   *rate.Limiter
	interval  time.Duration
	horizon   time.Duration
	observer  geodesy.Point
	request   opensky.StatesRequest

	totalUpdates int
}

// Run polls until the context is cancelled. A rate-limited response pauses
// polling for the advertised retry-after interval.
func (c *Collector) Run(ctx context.Context) {
	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		backoff := c.update(ctx)
		if backoff > 0 {
			log.Printf("Rate limited, pausing %v", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			c.printStats(ctx)
		default:
		}
	}
}

// update performs one fetch cycle and returns a backoff duration when the
// upstream asked us to slow down.
func (c *Collector) update(ctx context.Context) time.Duration {
	c.totalUpdates++
	start := time.Now()

	snap, err := c.client.FetchStates(ctx, c.request)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if rle, ok := opensky.IsRateLimited(err); ok {
			metrics.FetchesTotal.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			log.Printf("Fetch failed: %v", err)
			if rle.RetryAfterSeconds > 0 {
				return time.Duration(rle.RetryAfterSeconds) * time.Second
			}
			return c.interval
		}
		if _, ok := opensky.IsTransport(err); ok {
			metrics.FetchesTotal.WithLabelValues(metrics.OutcomeTransport).Inc()
		} else {
			metrics.FetchesTotal.WithLabelValues(metrics.OutcomeUpstream).Inc()
		}
		log.Printf("Fetch failed: %v", err)
		return 0
	}

	metrics.FetchesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.TrackedAircraft.Set(float64(snap.Len()))
	if state, err := c.client.RateLimit(ctx); err == nil && state.RemainingRequests != nil {
		metrics.RateLimitRemaining.Set(float64(*state.RemainingRequests))
	}

	c.snapCache.Put(snap)

	if c.repo != nil {
		if err := c.repo.Store(ctx, snap); err != nil {
			log.Printf("Error storing snapshot: %v", err)
		} else {
			metrics.SnapshotsStored.Inc()
		}
	}

	// Project ahead and report the closest aircraft
	projected := tracking.ProjectSnapshot(snap, snap.Time.Add(c.horizon))
	nearest := tracking.Nearest(projected.Vectors(), c.observer, 1)
	if len(nearest) > 0 {
		sv := nearest[0]
		log.Printf("Update #%d: %d aircraft, nearest %s (%s) %.1f km bearing %.0f",
			c.totalUpdates, snap.Len(), sv.ICAO24, sv.Callsign, sv.DistanceKm, sv.BearingDeg)
	} else {
		log.Printf("Update #%d: %d aircraft, none with position", c.totalUpdates, snap.Len())
	}

	return 0
}

// printStats displays snapshot freshness and, when persistence is enabled,
// database statistics.
func (c *Collector) printStats(ctx context.Context) {
	if age, ok := c.snapCache.Age(); ok {
		log.Printf("Current snapshot is %s old (%d total updates)",
			age.Round(time.Second), c.totalUpdates)
	} else {
		log.Printf("No snapshot fetched yet (%d total updates)", c.totalUpdates)
	}

	if c.database == nil {
		return
	}

	stats, err := c.database.GetStats(ctx)
	if err != nil {
		log.Printf("Error getting stats: %v", err)
		return
	}

	log.Printf("Stats: %v state vectors, %v airborne",
		stats["state_vectors"], stats["airborne"])
}
