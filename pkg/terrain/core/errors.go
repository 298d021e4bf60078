package core

import (
	"fmt"

	"github.com/CS-SI/ruggedgo/pkg/terrain/ellipsoid"
	"github.com/CS-SI/ruggedgo/pkg/terrain/intersect"
)

// Code is the single error-kind enumeration for the whole library,
// covering every kind in spec §7. Subpackages define their own narrower
// Code types (ellipsoid.Code, intersect.Code) for the handful of kinds
// they can themselves raise; wrap below folds those into this one.
type Code int

const (
	CodeNone Code = iota
	CodeUnknownSensor
	CodeOutOfTileAngles
	CodeOutOfTileIndices
	CodeEmptyTile
	CodeTileWithoutRequiredNeighborsSelected
	CodeDemEntryPointIsBehindSpacecraft
	CodeRayMissesEllipsoid
	CodeDuplicatedParameterName
	CodeNoParametersSelected
	CodeNoReferenceMappings
	CodeFramesMismatchWithInterpolatorDump
	CodeInternalError
)

func (c Code) String() string {
	switch c {
	case CodeUnknownSensor:
		return "UNKNOWN_SENSOR"
	case CodeOutOfTileAngles:
		return "OUT_OF_TILE_ANGLES"
	case CodeOutOfTileIndices:
		return "OUT_OF_TILE_INDICES"
	case CodeEmptyTile:
		return "EMPTY_TILE"
	case CodeTileWithoutRequiredNeighborsSelected:
		return "TILE_WITHOUT_REQUIRED_NEIGHBORS_SELECTED"
	case CodeDemEntryPointIsBehindSpacecraft:
		return "DEM_ENTRY_POINT_IS_BEHIND_SPACECRAFT"
	case CodeRayMissesEllipsoid:
		return "RAY_MISSES_ELLIPSOID"
	case CodeDuplicatedParameterName:
		return "DUPLICATED_PARAMETER_NAME"
	case CodeNoParametersSelected:
		return "NO_PARAMETERS_SELECTED"
	case CodeNoReferenceMappings:
		return "NO_REFERENCE_MAPPINGS"
	case CodeFramesMismatchWithInterpolatorDump:
		return "FRAMES_MISMATCH_WITH_INTERPOLATOR_DUMP"
	case CodeInternalError:
		return "INTERNAL_ERROR"
	default:
		return "NONE"
	}
}

// Error is the library's single error type; every fallible Rugged
// method returns one of these (never a raw error) so callers can switch
// on Code without a type assertion into a subpackage.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.msg) }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

// wrap folds an error from ellipsoid/intersect/cache/sensor/correction
// into a core.Error, preserving a subpackage Code when recognized and
// falling back to INTERNAL_ERROR otherwise.
func wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	if e, ok := err.(*ellipsoid.Error); ok {
		if e.Code == ellipsoid.CodeRayMissesEllipsoid {
			return newError(CodeRayMissesEllipsoid, "%s", e.Error())
		}
		return newError(CodeInternalError, "%s", e.Error())
	}
	if e, ok := err.(*intersect.Error); ok {
		switch e.Code {
		case intersect.CodeDemEntryPointIsBehindSpacecraft:
			return newError(CodeDemEntryPointIsBehindSpacecraft, "%s", e.Error())
		case intersect.CodeTileWithoutRequiredNeighborsSelected:
			return newError(CodeTileWithoutRequiredNeighborsSelected, "%s", e.Error())
		case intersect.CodeEmptyTile:
			return newError(CodeEmptyTile, "%s", e.Error())
		case intersect.CodeInternalError:
			return newError(CodeInternalError, "%s", e.Error())
		default:
			return newError(CodeInternalError, "%s", e.Error())
		}
	}
	return newError(CodeInternalError, "%s", err.Error())
}
