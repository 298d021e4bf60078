// Package core wires the ellipsoid, tile cache, intersection algorithm
// and sensor model into the Rugged facade (spec §6): the single entry
// point for direct location, inverse location and date location.
package core

import (
	"time"

	"github.com/CS-SI/ruggedgo/pkg/config"
	"github.com/CS-SI/ruggedgo/pkg/terrain/cache"
	"github.com/CS-SI/ruggedgo/pkg/terrain/correction"
	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/intersect"
	"github.com/CS-SI/ruggedgo/pkg/terrain/sensor"
)

// Rugged is the library's facade: it owns the ellipsoid model, the DEM
// tile cache, the selected intersection algorithm, and the registry of
// line sensors, and exposes direct/inverse/date location as its public
// API.
type Rugged struct {
	ellipsoid   ellipsoid.Ellipsoid
	algorithm   intersect.Algorithm
	cache       *cache.TileCache
	sensors     map[string]*sensor.LineSensor
	trajectory  sensor.Trajectory
	lightTime   bool
	aberration  bool
	refLon      float64
	dumpCache   *TrajectoryCache
}

// New builds a Rugged instance from configuration, a TileUpdater
// supplying DEM data, and a Trajectory supplying spacecraft
// position/attitude as a function of sensor line.
func New(cfg *config.Config, updater cache.TileUpdater, traj sensor.Trajectory) (*Rugged, error) {
	e, err := ellipsoid.ByName(cfg.Ellipsoid.Model)
	if err != nil {
		return nil, wrap(err)
	}

	var c *cache.TileCache
	if updater != nil {
		c, err = cache.NewTileCache(updater, cfg.Cache.MaxTiles, cfg.Cache.Overlapping)
		if err != nil {
			return nil, wrap(err)
		}
	}

	algo, err := intersect.New(intersect.Name(cfg.Algorithm.Name), e, c, 0, cfg.Algorithm.ConstantElevation)
	if err != nil {
		return nil, wrap(err)
	}

	return &Rugged{
		ellipsoid:  e,
		algorithm:  algo,
		cache:      c,
		sensors:    map[string]*sensor.LineSensor{},
		trajectory: traj,
		lightTime:  cfg.Corrections.LightTime,
		aberration: cfg.Corrections.AberrationOfLight,
		dumpCache:  NewTrajectoryCache(traj, e.BodyFrame),
	}, nil
}

// AddSensor registers a line sensor under its own name.
func (r *Rugged) AddSensor(s *sensor.LineSensor) {
	r.sensors[s.Name] = s
}

func (r *Rugged) sensor(name string) (*sensor.LineSensor, error) {
	s, ok := r.sensors[name]
	if !ok {
		return nil, newError(CodeUnknownSensor, "sensor %q is not registered", name)
	}
	return s, nil
}

// DirectLocation computes the ground point observed by sensorName at
// (line, pixel).
func (r *Rugged) DirectLocation(sensorName string, line, pixel float64) (ellipsoid.NormalizedGeodeticPoint, error) {
	s, err := r.sensor(sensorName)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}

	pos, los, err := s.LOSInBody(r.dumpCache, line, pixel)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, wrap(err)
	}

	// Velocity is in meters per line; the line rate turns it into the
	// meters per second the corrections work in.
	if r.aberration {
		if vel, velErr := r.dumpCache.Velocity(line); velErr == nil {
			if corrected, err := correction.AberrationOfLight(los, vel.Scale(s.LineRate)); err == nil {
				los = corrected
			}
		}
	}

	if r.lightTime {
		approxGround, err := r.algorithm.Intersect(pos, los)
		if err == nil {
			groundCart := r.ellipsoid.TransformGeodetic(approxGround.GeodeticPoint)
			vel, velErr := r.dumpCache.Velocity(line)
			if velErr == nil {
				pos = correction.LightTime(pos, vel.Scale(s.LineRate), groundCart)
			}
		}
	}

	gp, err := r.algorithm.Intersect(pos, los)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, wrap(err)
	}
	return gp, nil
}

// InverseLocation finds the (line, pixel) at which sensorName observes
// targetLat/targetLon (both in radians), restricting the search to
// [minLine, maxLine] (clamped to the sensor's own [FirstLine, LastLine]
// if the caller's bounds are wider). It returns found=false (not an
// error) when the target falls outside that range or is never crossed
// by the mean plane within it.
func (r *Rugged) InverseLocation(sensorName string, targetLat, targetLon, targetAlt, minLine, maxLine float64) (line, pixel float64, found bool, err error) {
	s, serr := r.sensor(sensorName)
	if serr != nil {
		return 0, 0, false, serr
	}

	if minLine < float64(s.FirstLine) {
		minLine = float64(s.FirstLine)
	}
	if maxLine > float64(s.LastLine) {
		maxLine = float64(s.LastLine)
	}
	if minLine > maxLine {
		return 0, 0, false, nil
	}

	target := r.ellipsoid.TransformGeodetic(ellipsoid.GeodeticPoint{Lat: targetLat, Lon: targetLon, Alt: targetAlt})

	guess := (minLine + maxLine) / 2
	line, lerr := s.MeanPlaneCrossing(r.dumpCache, target, guess, minLine, maxLine)
	if lerr != nil {
		return 0, 0, false, nil
	}

	pixel, perr := s.PixelCrossing(r.dumpCache, line, target)
	if perr != nil {
		return 0, 0, false, nil
	}

	return line, pixel, true, nil
}

// DateLocation finds the date at which sensorName observes
// targetLat/targetLon, by inverse-locating the target within
// [minLine, maxLine] and converting the resulting line back to a date
// via the sensor's constant line rate relative to referenceTime (the
// same epoch DirectLocationAtDate converts dates to lines against). It
// returns found=false (not an error) when the target is never observed
// in that line range.
func (r *Rugged) DateLocation(sensorName string, referenceTime time.Time, targetLat, targetLon, targetAlt, minLine, maxLine float64) (t time.Time, found bool, err error) {
	s, serr := r.sensor(sensorName)
	if serr != nil {
		return time.Time{}, false, serr
	}
	if s.LineRate <= 0 {
		return time.Time{}, false, newError(CodeInternalError, "sensor %q has a non-positive line rate", sensorName)
	}

	line, _, found, lerr := r.InverseLocation(sensorName, targetLat, targetLon, targetAlt, minLine, maxLine)
	if lerr != nil {
		return time.Time{}, false, lerr
	}
	if !found {
		return time.Time{}, false, nil
	}

	seconds := line / s.LineRate
	return referenceTime.Add(time.Duration(seconds * float64(time.Second))), true, nil
}

// DirectLocationAtDate is a convenience wrapper converting a UTC time to
// a sensor line via the sensor's constant line rate, then delegating to
// DirectLocation.
func (r *Rugged) DirectLocationAtDate(sensorName string, t time.Time, referenceTime time.Time, pixel float64) (ellipsoid.NormalizedGeodeticPoint, error) {
	s, err := r.sensor(sensorName)
	if err != nil {
		return ellipsoid.NormalizedGeodeticPoint{}, err
	}
	if s.LineRate <= 0 {
		return ellipsoid.NormalizedGeodeticPoint{}, newError(CodeInternalError, "sensor %q has a non-positive line rate", sensorName)
	}
	seconds := t.Sub(referenceTime).Seconds()
	line := seconds * s.LineRate
	return r.DirectLocation(sensorName, line, pixel)
}

// Ellipsoid exposes the configured ellipsoid model, for callers that
// need to do their own cartesian/geodetic conversions.
func (r *Rugged) Ellipsoid() ellipsoid.Ellipsoid { return r.ellipsoid }

// Cache exposes the tile cache for inspection (debug API occupancy
// endpoint); nil when New was given no TileUpdater.
func (r *Rugged) Cache() *cache.TileCache { return r.cache }

// Sensor exposes a registered sensor by name.
func (r *Rugged) Sensor(name string) (*sensor.LineSensor, error) {
	return r.sensor(name)
}
