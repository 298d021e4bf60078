package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CS-SI/ruggedgo/internal/api"
	"github.com/CS-SI/ruggedgo/pkg/config"
	"github.com/CS-SI/ruggedgo/pkg/logging"
	"github.com/CS-SI/ruggedgo/pkg/probe"
	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
	"github.com/CS-SI/ruggedgo/pkg/terrain/core"
	"github.com/CS-SI/ruggedgo/pkg/terrain/demodem"
	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/sensor"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault("configs/ruggedgo.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/ruggedgo.yaml")
		return
	}

	if err := run(context.Background(), "configs/ruggedgo.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("ruggedgo started")

	dem, err := demodem.Open(cfg.Dem.Etopo1Path)
	if err != nil {
		slog.Warn("ETOPO1 DEM not available, falling back to a flat demo terrain", "path", cfg.Dem.Etopo1Path, "error", err)
	} else {
		defer dem.Close()
	}

	var updater cache.TileUpdater
	if dem != nil {
		updater = dem
	} else {
		updater = &flatDemoTerrain{elevation: 0}
	}

	traj := newDemoTrajectory()

	rugged, err := core.New(cfg, updater, traj)
	if err != nil {
		return fmt.Errorf("failed to build terrain core: %w", err)
	}

	for name, s := range cfg.Sensors {
		rugged.AddSensor(&sensor.LineSensor{
			Name:      name,
			LOS:       sensor.NadirFan(s.FOVDegrees*math.Pi/180, s.Pixels),
			NbPixels:  s.Pixels,
			LineRate:  s.LineRateHz,
			FirstLine: s.FirstLine,
			LastLine:  s.LastLine,
		})
	}

	probes := []probe.Probe{
		{
			Name: "DEM source",
			Check: func(context.Context) error {
				if dem == nil {
					return fmt.Errorf("no ETOPO1 file loaded, serving a flat demo terrain instead")
				}
				return nil
			},
			Critical: false,
		},
		{
			Name: "Sensor registry",
			Check: func(context.Context) error {
				if len(cfg.Sensors) == 0 {
					return fmt.Errorf("no sensors configured")
				}
				return nil
			},
			Critical: true,
		},
	}
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, cfg, rugged)
}

func runServer(ctx context.Context, cfg *config.Config, rugged *core.Rugged) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address, rugged, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)

	slog.Info("starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("shutting down server...")
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("request processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// flatDemoTerrain is the cache.TileUpdater used when no ETOPO1 file is
// configured: every tile is a single constant elevation, so direct and
// inverse location still work end to end for a quick smoke test.
type flatDemoTerrain struct {
	elevation float64
}

func (f *flatDemoTerrain) UpdateTile(lat, lon float64, t *cache.Tile) error {
	const cells = 21
	stepDeg := 1.0
	baseLatDeg := math.Floor(lat*180/math.Pi/stepDeg) * stepDeg
	baseLonDeg := math.Floor(lon*180/math.Pi/stepDeg) * stepDeg

	minLat := baseLatDeg * math.Pi / 180
	minLon := baseLonDeg * math.Pi / 180
	step := (stepDeg / (cells - 1)) * math.Pi / 180

	if err := t.SetGeometry(minLat, minLon, step, step, cells, cells); err != nil {
		return err
	}
	for r := 0; r < cells; r++ {
		for c := 0; c < cells; c++ {
			if err := t.SetElevation(r, c, f.elevation); err != nil {
				return err
			}
		}
	}
	return t.Finish()
}

// demoTrajectory is a constant-velocity straight-line orbit approximation
// good enough to exercise direct/inverse location without a real
// ephemeris/attitude source wired in.
type demoTrajectory struct {
	p0, v ellipsoid.Vec3
}

func newDemoTrajectory() *demoTrajectory {
	return &demoTrajectory{
		p0: ellipsoid.Vec3{X: 0, Y: 0, Z: 7_000_000},
		v:  ellipsoid.Vec3{X: 7_000, Y: 0, Z: 0},
	}
}

func (d *demoTrajectory) SpacecraftToBody(line float64) (ellipsoid.Vec3, func(ellipsoid.Vec3) ellipsoid.Vec3, error) {
	pos := d.p0.Add(d.v.Scale(line))
	identity := func(v ellipsoid.Vec3) ellipsoid.Vec3 { return v }
	return pos, identity, nil
}
