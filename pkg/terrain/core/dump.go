package core

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/sensor"
)

// dumpMagic tags the persisted trajectory-transform format.
const dumpMagic = "RUGGO-TRJ1"

// TrajectoryCache wraps a caller-supplied sensor.Trajectory, memoizing
// the single most recently requested line's spacecraft-to-body
// transform: mean-plane crossing and pixel crossing both repeatedly
// re-evaluate the trajectory at line guesses that converge toward the
// same value, so a one-entry cache captures nearly all the benefit of a
// full interpolator cache without needing per-sensor storage.
type TrajectoryCache struct {
	underlying sensor.Trajectory
	bodyFrame  string

	haveEntry bool
	line      float64
	position  ellipsoid.Vec3
	toBody    func(ellipsoid.Vec3) ellipsoid.Vec3

	// id tags this cache instance for the debug API / persisted dumps.
	id uuid.UUID
}

// NewTrajectoryCache wraps traj, tagging the cache with bodyFrame so a
// later-loaded dump can be checked for frame agreement.
func NewTrajectoryCache(traj sensor.Trajectory, bodyFrame string) *TrajectoryCache {
	return &TrajectoryCache{underlying: traj, bodyFrame: bodyFrame, id: uuid.New()}
}

// ID returns the cache's identifier, included in persisted dumps and
// surfaced by the debug API.
func (c *TrajectoryCache) ID() uuid.UUID { return c.id }

// SpacecraftToBody implements sensor.Trajectory, serving the memoized
// entry when line matches the last request exactly (the common case
// inside a single Newton/bisection search) and delegating otherwise.
func (c *TrajectoryCache) SpacecraftToBody(line float64) (ellipsoid.Vec3, func(ellipsoid.Vec3) ellipsoid.Vec3, error) {
	if c.haveEntry && line == c.line {
		return c.position, c.toBody, nil
	}
	pos, toBody, err := c.underlying.SpacecraftToBody(line)
	if err != nil {
		return ellipsoid.Vec3{}, nil, err
	}
	c.haveEntry, c.line, c.position, c.toBody = true, line, pos, toBody
	return pos, toBody, nil
}

// Velocity estimates spacecraft velocity at line, in meters per line, by
// central finite difference of position over line±0.01, bypassing the
// memoized single entry since both taps are needed simultaneously.
func (c *TrajectoryCache) Velocity(line float64) (ellipsoid.Vec3, error) {
	const dl = 1e-2
	p0, _, err := c.underlying.SpacecraftToBody(line - dl)
	if err != nil {
		return ellipsoid.Vec3{}, err
	}
	p1, _, err := c.underlying.SpacecraftToBody(line + dl)
	if err != nil {
		return ellipsoid.Vec3{}, err
	}
	return p1.Sub(p0).Scale(1 / (2 * dl)), nil
}

// Save persists the cache's single memoized entry (if any) in a
// self-describing binary format, version-tagged with the magic header,
// the cache's UUID, and the body frame identifier string.
func (c *TrajectoryCache) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trajectory dump %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	writeString(w, dumpMagic)
	writeString(w, c.bodyFrame)
	idBytes, _ := c.id.MarshalBinary()
	w.Write(idBytes)

	hasEntry := byte(0)
	if c.haveEntry {
		hasEntry = 1
	}
	w.WriteByte(hasEntry)
	if c.haveEntry {
		binary.Write(w, binary.LittleEndian, c.line)
		binary.Write(w, binary.LittleEndian, c.position.X)
		binary.Write(w, binary.LittleEndian, c.position.Y)
		binary.Write(w, binary.LittleEndian, c.position.Z)
	}
	return w.Flush()
}

// LoadTrajectoryCache reads back a dump produced by Save, checking the
// stored body frame against expectedBodyFrame and failing with
// FRAMES_MISMATCH_WITH_INTERPOLATOR_DUMP on disagreement. The loaded
// cache's toBody transform is NOT restored (rotations aren't persisted,
// only the position sample and its line); it must be paired with the
// same underlying sensor.Trajectory used when it was written so the
// rotation can be recomputed on first use.
func LoadTrajectoryCache(path, expectedBodyFrame string, underlying sensor.Trajectory) (*TrajectoryCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory dump %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic, err := readString(r)
	if err != nil || magic != dumpMagic {
		return nil, newError(CodeInternalError, "trajectory dump %s has an unrecognized format", path)
	}

	bodyFrame, err := readString(r)
	if err != nil {
		return nil, newError(CodeInternalError, "trajectory dump %s is truncated", path)
	}
	if bodyFrame != expectedBodyFrame {
		return nil, newError(CodeFramesMismatchWithInterpolatorDump,
			"dump body frame %q does not match configured ellipsoid frame %q", bodyFrame, expectedBodyFrame)
	}

	var idBytes [16]byte
	if _, err := r.Read(idBytes[:]); err != nil {
		return nil, newError(CodeInternalError, "trajectory dump %s is truncated", path)
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return nil, newError(CodeInternalError, "trajectory dump %s has a malformed id: %v", path, err)
	}

	c := &TrajectoryCache{underlying: underlying, bodyFrame: bodyFrame, id: id}

	hasEntry, err := r.ReadByte()
	if err != nil {
		return nil, newError(CodeInternalError, "trajectory dump %s is truncated", path)
	}
	if hasEntry == 1 {
		var line, x, y, z float64
		for _, v := range []*float64{&line, &x, &y, &z} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return nil, newError(CodeInternalError, "trajectory dump %s is truncated", path)
			}
		}
		if math.IsNaN(line) {
			return nil, newError(CodeInternalError, "trajectory dump %s has a corrupt line value", path)
		}
		_, toBody, err := underlying.SpacecraftToBody(line)
		if err != nil {
			return nil, err
		}
		c.haveEntry, c.line, c.position, c.toBody = true, line, ellipsoid.Vec3{X: x, Y: y, Z: z}, toBody
	}

	return c, nil
}

func writeString(w *bufio.Writer, s string) {
	binary.Write(w, binary.LittleEndian, uint32(len(s)))
	w.WriteString(s)
}

func readString(r *bufio.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
