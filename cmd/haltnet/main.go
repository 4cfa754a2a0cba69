package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/gtfs"
	"github.com/theoremus-urban-solutions/haltnet/internal"
	"github.com/theoremus-urban-solutions/haltnet/persist"
	"github.com/theoremus-urban-solutions/haltnet/realtime"
	"github.com/theoremus-urban-solutions/haltnet/report"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

func main() {
	mode := flag.String("mode", "oneshot", "oneshot|serve")
	format := flag.String("format", "json", "json|xml")
	configPath := flag.String("config", "", "config file (default config.yml)")
	feedName := flag.String("feed", "", "feed name from config.feeds[]")
	tripUpdates := flag.String("tripUpdates", "", "GTFS-RT TripUpdates URL or file (overrides config)")
	loadPath := flag.String("load", "", "saved world to resume")
	savePath := flag.String("save", "", "file to save the world to on exit")
	ticks := flag.Int("ticks", 0, "ticks to run (oneshot) or per interval (serve)")
	interval := flag.Duration("interval", time.Second, "wall time between serve steps")
	flag.Parse()

	internal.InitLogging(nil, "")
	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	if err := config.LoadAppConfig(paths...); err != nil {
		if *configPath != "" {
			log.Fatalf("config: %v", err)
		}
		log.Printf("no config file, using defaults")
	}
	cfg := config.Config
	internal.InitLogging(nil, cfg.Sim.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed, hasFeed := config.SelectFeed(*feedName)
	if *tripUpdates != "" {
		feed.TripUpdatesURL = *tripUpdates
	}
	f := newFetcher(feed.TimeoutMS)

	w, binding, err := setup(ctx, cfg, feed, hasFeed, f, *loadPath)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	if err := w.Prepare(ctx); err != nil {
		log.Fatalf("prepare: %v", err)
	}
	live := report.NewLive(w)
	var updater *realtime.Updater
	if binding != nil && feed.TripUpdatesURL != "" {
		updater = realtime.NewUpdater(w.Network(), binding, w.Diagnostics())
	}

	switch *mode {
	case "oneshot":
		if err := applyRealtime(ctx, live, updater, f, feed.TripUpdatesURL); err != nil {
			log.Printf("realtime: %v", err)
		}
		if err := live.Run(ctx, *ticks); err != nil {
			log.Fatalf("run: %v", err)
		}
		snap := live.Snapshot()
		if *format == "xml" {
			fmt.Println(string(report.BuildXML(snap)))
		} else {
			fmt.Println(string(report.BuildJSON(snap)))
		}
	case "serve":
		srv := internal.NewServer(cfg.Server.Port, live)
		srv.Start()
		go serveLoop(ctx, live, updater, f, feed.TripUpdatesURL, max(*ticks, 1), *interval)
		internal.HandleGracefulShutdown(ctx, srv)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if *savePath != "" {
		if err := live.Do(func(w *sim.World) error { return persist.Save(w, *savePath) }); err != nil {
			log.Fatalf("save: %v", err)
		}
	}
}

// setup resumes a saved world or creates one from the config's cities
// and the selected schedule feed. A resumed world has no feed binding.
func setup(ctx context.Context, cfg config.AppConfig, feed config.FeedConfig, hasFeed bool, f *fetcher, loadPath string) (*sim.World, *gtfs.Binding, error) {
	if loadPath != "" {
		w, err := persist.Load(loadPath, cfg)
		return w, nil, err
	}
	w := sim.New(cfg)
	for _, c := range cfg.Cities {
		if _, err := w.FoundCity(c.Name, image.Pt(c.X, c.Y), c.Radius, c.Population); err != nil {
			return nil, nil, err
		}
	}
	if !hasFeed || (feed.StaticPath == "" && feed.StaticURL == "") {
		return w, nil, nil
	}
	gf, err := f.static(ctx, feed.StaticPath, feed.StaticURL)
	if err != nil {
		return nil, nil, fmt.Errorf("feed %s: %w", feed.Name, err)
	}
	area := image.Rect(0, 0, cfg.Sim.MapWidth, cfg.Sim.MapHeight)
	b, err := gtfs.Import(gf, w.Network(), gtfs.NewProjection(gf, area), gtfs.DefaultImportOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("feed %s: %w", feed.Name, err)
	}
	return w, b, nil
}

func applyRealtime(ctx context.Context, live *report.Live, u *realtime.Updater, f *fetcher, src string) error {
	if u == nil {
		return nil
	}
	raw, err := f.fetch(ctx, src)
	if err != nil {
		return err
	}
	return live.Do(func(*sim.World) error {
		_, err := u.ApplyBytes(raw)
		return err
	})
}

func serveLoop(ctx context.Context, live *report.Live, u *realtime.Updater, f *fetcher, src string, ticks int, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := applyRealtime(ctx, live, u, f, src); err != nil {
			log.Printf("realtime: %v", err)
		}
		if err := live.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Printf("run: %v", err)
		}
	}
}
