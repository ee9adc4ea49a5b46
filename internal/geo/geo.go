package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.7f,%.7f", c.Latitude, c.Longitude)
}

// DistanceMeters returns the great-circle distance between a and b.
// Invalid input (NaN, out of range) is not trapped; NaN propagates to the result.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Geofence is an allowed-radius circle around a fixed coordinate.
type Geofence struct {
	Center       Coordinate
	RadiusMeters float64
}

// Check returns the distance from the fence center and whether c lies inside.
// A point exactly on the boundary is inside.
func (g Geofence) Check(c Coordinate) (float64, bool) {
	d := DistanceMeters(g.Center, c)
	return d, d <= g.RadiusMeters
}

// Locator acquires the device position. One call is one single-shot request.
type Locator interface {
	CurrentPosition(ctx context.Context) (Coordinate, error)
}

// PositionErrorReason classifies a failed position request.
type PositionErrorReason string

const (
	PermissionDenied    PositionErrorReason = "permission_denied"
	PositionUnavailable PositionErrorReason = "position_unavailable"
	Timeout             PositionErrorReason = "timeout"
	Unsupported         PositionErrorReason = "unsupported"
)

// ParseReason maps a client-reported reason onto a known one. Unknown values
// collapse to PositionUnavailable.
func ParseReason(s string) PositionErrorReason {
	switch r := PositionErrorReason(s); r {
	case PermissionDenied, PositionUnavailable, Timeout, Unsupported:
		return r
	}
	return PositionUnavailable
}

// PositionError reports why no coordinate could be obtained.
type PositionError struct {
	Reason PositionErrorReason
}

func (e *PositionError) Error() string {
	if e.Reason == Unsupported {
		return "geolocation is not supported on this device"
	}
	return "failed to obtain location, make sure location permission is enabled"
}

// IsPositionError reports whether err carries a PositionError.
func IsPositionError(err error) bool {
	var pe *PositionError
	return errors.As(err, &pe)
}

// Reported is a Locator over a position the client already resolved (or failed
// to resolve) on its side.
type Reported struct {
	Coordinate *Coordinate
	Reason     string
}

func (r Reported) CurrentPosition(ctx context.Context) (Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	if r.Reason != "" || r.Coordinate == nil {
		return Coordinate{}, &PositionError{Reason: ParseReason(r.Reason)}
	}
	return *r.Coordinate, nil
}
