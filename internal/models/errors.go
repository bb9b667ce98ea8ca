package models

import "go.trai.ch/zerr"

var (
	// ErrNoVariation is returned when a volume is constant after smoothing.
	ErrNoVariation = zerr.New("no intensity variation in volume")

	// ErrInsufficientSignal is returned when too few voxels exceed the threshold.
	ErrInsufficientSignal = zerr.New("insufficient signal above threshold")

	// ErrNoSignificantVoxels is returned when a companion volume has no
	// strictly positive voxel. Callers treat it as an empty result.
	ErrNoSignificantVoxels = zerr.New("no significant voxels")

	// ErrUnknownMethod is returned for an unrecognized normalization method.
	ErrUnknownMethod = zerr.New("unknown normalization method")

	// ErrInvalidPlane is returned for an unrecognized slice plane.
	ErrInvalidPlane = zerr.New("invalid slice plane")

	// ErrIndexOutOfRange is returned when a slice index is outside the volume.
	ErrIndexOutOfRange = zerr.New("slice index out of range")

	// ErrInvalidParameter is returned when an operation parameter is out of range.
	ErrInvalidParameter = zerr.New("invalid parameter")

	// ErrInvalidMesh is returned for empty or inconsistent meshes.
	ErrInvalidMesh = zerr.New("invalid mesh")

	// ErrShapeMismatch is returned when sample data does not match a shape.
	ErrShapeMismatch = zerr.New("shape mismatch")

	// ErrVolumeNotFound is returned when a registry lookup fails.
	ErrVolumeNotFound = zerr.New("volume not found")

	// ErrDuplicateVolume is returned when a volume id is already registered.
	ErrDuplicateVolume = zerr.New("volume already registered")

	// ErrNotPrimary is returned when an operation requires a primary volume.
	ErrNotPrimary = zerr.New("volume is not a primary volume")

	// ErrNotCompanion is returned when an operation requires a companion volume.
	ErrNotCompanion = zerr.New("volume is not a companion volume")

	// ErrNoTransform is returned when a primary has not been normalized yet.
	ErrNoTransform = zerr.New("no normalization transform recorded")

	// ErrUnsupportedFormat is returned for unreadable volume files.
	ErrUnsupportedFormat = zerr.New("unsupported volume format")
)
