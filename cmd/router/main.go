package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"gtfs-router/internal/config"
	"gtfs-router/internal/feedstore"
	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
	"gtfs-router/internal/metrics"
	"gtfs-router/internal/raptor"
	"gtfs-router/internal/timetable"
	"gtfs-router/internal/transport/natsrpc"
)

// core is one fully-built, immutable timetable generation: a registry,
// engine and the counts worth reporting to metrics. A feed refresh builds a
// fresh core and swaps it in; in-flight Find calls keep using whichever core
// they started with.
type core struct {
	built  *timetable.Built
	engine *raptor.Engine
}

// liveEngine is a Finder that always forwards to the most recently published
// core, satisfying natsrpc.Finder without the server ever touching a stale
// engine after a refresh.
type liveEngine struct{ cur *atomic.Pointer[core] }

func (l liveEngine) Find(starts, ends []ident.StopID, departure geo.Seconds) (raptor.Journey, error) {
	return l.cur.Load().engine.Find(starts, ends, departure)
}

// liveRegistry mirrors liveEngine for the identifier registry side of
// natsrpc.Resolver.
type liveRegistry struct{ cur *atomic.Pointer[core] }

func (l liveRegistry) Stop(id string) (ident.StopID, error) { return l.cur.Load().built.Registry.Stop(id) }
func (l liveRegistry) StopString(id ident.StopID) (string, error) {
	return l.cur.Load().built.Registry.StopString(id)
}
func (l liveRegistry) RouteKeyOf(id ident.RouteID) (ident.RouteKey, error) {
	return l.cur.Load().built.Registry.RouteKeyOf(id)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := feedstore.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := feedstore.Ping(ctx, db); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	var mcol *metrics.Collector
	var metricsSrvCancel context.CancelFunc
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		mctx, mcancel := context.WithCancel(ctx)
		metricsSrvCancel = mcancel
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-mctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cur := &atomic.Pointer[core]{}
	if err := refresh(ctx, db, cfg, mcol, cur); err != nil {
		log.Fatalf("initial feed load error: %v", err)
	}

	var rpcMetrics natsrpc.Metrics
	if mcol != nil {
		rpcMetrics = mcol
	}
	server, err := natsrpc.Serve(
		cfg.NATSURL,
		cfg.NATSSubjectPrefix+".find",
		cfg.NATSSubjectPrefix+"-workers",
		liveEngine{cur: cur},
		liveRegistry{cur: cur},
		rpcMetrics,
		cfg.RequestTimeout,
	)
	if err != nil {
		log.Fatalf("nats rpc error: %v", err)
	}
	defer server.Close()
	log.Printf("router listening on %s.find", cfg.NATSSubjectPrefix)

	go runRefresher(ctx, db, cfg, mcol, cur)

	<-ctx.Done()
	if metricsSrvCancel != nil {
		metricsSrvCancel()
	}
	log.Println("shutdown complete")
}

// runRefresher reloads the feed from the database on cfg.FeedRefreshInterval
// and publishes a new core, so a GTFS re-import is picked up without
// restarting the process.
func runRefresher(ctx context.Context, db *sql.DB, cfg *config.Config, mcol *metrics.Collector, cur *atomic.Pointer[core]) {
	ticker := time.NewTicker(cfg.FeedRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := refresh(ctx, db, cfg, mcol, cur); err != nil {
			log.Printf("feed refresh error: %v", err)
		} else {
			log.Printf("feed refreshed")
		}
	}
}

func refresh(ctx context.Context, db *sql.DB, cfg *config.Config, mcol *metrics.Collector, cur *atomic.Pointer[core]) error {
	rawFeed, err := feedstore.Load(ctx, db)
	if err != nil {
		return err
	}
	built, err := timetable.Build(rawFeed)
	if err != nil {
		return err
	}

	engine := raptor.New(built.Registry, built.Routes, built.Stops)
	if err := engine.SetOptions(cfg.WalkingSpeed, cfg.ServiceID); err != nil {
		return err
	}

	cur.Store(&core{built: built, engine: engine})

	if mcol != nil {
		mcol.FeedStops.Set(float64(built.Registry.StopCount()))
		mcol.FeedRoutes.Set(float64(built.Registry.RouteCount()))
		mcol.FeedTrips.Set(float64(built.Registry.TripCount()))
	}
	return nil
}
