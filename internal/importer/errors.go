package importer

import (
	"errors"
	"fmt"
)

// Import errors. Open and ImportTrackData wrap one of the first four; use
// StatusOf to map an error onto a Status.
var (
	ErrInvalidArchive     = errors.New("invalid archive")
	ErrNoValidTopObject   = errors.New("archive has no valid top object")
	ErrNoMeshes           = errors.New("no meshes found in archive")
	ErrFailedToImportData = errors.New("failed to import frame data")

	ErrInvalidFrameRange  = fmt.Errorf("%w: invalid frame range", ErrFailedToImportData)
	ErrCancelled          = errors.New("import cancelled")
	ErrNoMeshesToCompress = errors.New("no meshes found with vertex animation and baked matrix animation is turned off")
	ErrNotImported        = errors.New("track data has not been imported")
)

// Status is the coarse result of an import step.
type Status int

// Import statuses.
const (
	StatusNoError Status = iota
	StatusInvalidArchive
	StatusNoValidTopObject
	StatusNoMeshes
	StatusFailedToImportData
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNoError:
		return "NoError"
	case StatusInvalidArchive:
		return "InvalidArchive"
	case StatusNoValidTopObject:
		return "NoValidTopObject"
	case StatusNoMeshes:
		return "NoMeshes"
	case StatusFailedToImportData:
		return "FailedToImportData"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// StatusOf maps err onto a Status. Errors outside the import taxonomy count
// as failed imports.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusNoError
	case errors.Is(err, ErrInvalidArchive):
		return StatusInvalidArchive
	case errors.Is(err, ErrNoValidTopObject):
		return StatusNoValidTopObject
	case errors.Is(err, ErrNoMeshes):
		return StatusNoMeshes
	default:
		return StatusFailedToImportData
	}
}
