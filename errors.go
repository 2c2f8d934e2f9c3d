package fleetwise

import "errors"

var (
	// ErrEmptyQuery is returned when the query text is missing or blank.
	ErrEmptyQuery = errors.New("fleetwise: query text is empty")

	// ErrManualNotFound is returned when a manual ID does not exist or has
	// been deactivated.
	ErrManualNotFound = errors.New("fleetwise: manual not found")

	// ErrGenerationFailed is returned when answer synthesis fails.
	ErrGenerationFailed = errors.New("fleetwise: answer generation failed")

	// ErrIngestFailed is returned when manual ingestion fails.
	ErrIngestFailed = errors.New("fleetwise: manual ingestion failed")

	// ErrVisionRequired is returned when ingestion is attempted without a
	// configured vision provider.
	ErrVisionRequired = errors.New("fleetwise: vision provider required for ingestion")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("fleetwise: invalid configuration")
)
