package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist, and by the route data client when the service
// answers 404 (no stored route for a trip).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails validation before any remote
// call is made (e.g. missing car id, end of range before start).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrService is returned when the route data service cannot be reached,
// answers with a non-success status, or reports success=false.
var ErrService = errors.New("route service error")

// ErrDataQuality is returned when the service answered successfully but the
// payload is unusable: no coordinates at all, or none that survive
// normalization.
var ErrDataQuality = errors.New("data quality error")

// ErrSuperseded is returned to the caller of a route store operation whose
// result was discarded because a newer operation was started before it
// completed.
var ErrSuperseded = errors.New("superseded by a newer request")
