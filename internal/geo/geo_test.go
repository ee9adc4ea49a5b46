package geo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var school = Coordinate{Latitude: -6.5695979, Longitude: 110.6871696}

func TestDistanceMetersSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, DistanceMeters(school, school))
}

func TestDistanceMetersSymmetric(t *testing.T) {
	pairs := []struct {
		name string
		a, b Coordinate
	}{
		{"nearby", school, Coordinate{Latitude: -6.5693, Longitude: 110.6875}},
		{"across equator", Coordinate{Latitude: 10, Longitude: 20}, Coordinate{Latitude: -15, Longitude: 35}},
		{"antimeridian", Coordinate{Latitude: 0, Longitude: 179.9}, Coordinate{Latitude: 0, Longitude: -179.9}},
		{"poles", Coordinate{Latitude: 90, Longitude: 0}, Coordinate{Latitude: -90, Longitude: 0}},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			ab := DistanceMeters(tt.a, tt.b)
			ba := DistanceMeters(tt.b, tt.a)
			assert.InDelta(t, ab, ba, 1e-9)
			assert.Greater(t, ab, 0.0)
			assert.InDelta(t, 0, DistanceMeters(tt.a, tt.a), 1e-9)
		})
	}
}

func TestDistanceMetersKnownValues(t *testing.T) {
	// one degree of latitude on a 6371 km sphere
	d := DistanceMeters(Coordinate{Latitude: 0, Longitude: 0}, Coordinate{Latitude: 1, Longitude: 0})
	assert.InDelta(t, 111194.93, d, 0.01)

	// pole to pole is half the circumference
	d = DistanceMeters(Coordinate{Latitude: 90}, Coordinate{Latitude: -90})
	assert.InDelta(t, math.Pi*EarthRadiusMeters, d, 1e-6)
}

func TestDistanceMetersNaNPropagates(t *testing.T) {
	d := DistanceMeters(Coordinate{Latitude: math.NaN()}, school)
	assert.True(t, math.IsNaN(d))
}

func TestGeofenceCheck(t *testing.T) {
	fence := Geofence{Center: school, RadiusMeters: 30}

	north := Coordinate{Latitude: school.Latitude + 0.00027, Longitude: school.Longitude}
	d, inside := fence.Check(north)
	assert.InDelta(t, 30.02, d, 0.01)
	assert.False(t, inside, "0.00027 degrees north is just past 30 m")

	d, inside = fence.Check(Coordinate{Latitude: school.Latitude + 0.0002, Longitude: school.Longitude})
	assert.Less(t, d, 30.0)
	assert.True(t, inside)

	d, inside = fence.Check(school)
	assert.Equal(t, 0.0, d)
	assert.True(t, inside)
}

func TestGeofenceBoundaryIsInclusive(t *testing.T) {
	p := Coordinate{Latitude: school.Latitude + 0.00027, Longitude: school.Longitude}
	exact := DistanceMeters(school, p)

	_, inside := Geofence{Center: school, RadiusMeters: exact}.Check(p)
	assert.True(t, inside, "distance equal to radius is accepted")

	_, inside = Geofence{Center: school, RadiusMeters: math.Nextafter(exact, 0)}.Check(p)
	assert.False(t, inside, "distance just above radius is rejected")
}

func TestReportedLocator(t *testing.T) {
	ctx := context.Background()

	c, err := Reported{Coordinate: &school}.CurrentPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, school, c)

	_, err = Reported{Reason: "permission_denied"}.CurrentPosition(ctx)
	require.Error(t, err)
	var pe *PositionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PermissionDenied, pe.Reason)
	assert.True(t, IsPositionError(err))

	_, err = Reported{}.CurrentPosition(ctx)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PositionUnavailable, pe.Reason)

	assert.Equal(t, PositionUnavailable, ParseReason("something-else"))
	assert.Equal(t, Timeout, ParseReason("timeout"))
}
