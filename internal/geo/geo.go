package geo

import (
	"errors"
	"math"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// its valid range.
var ErrInvalidCoordinate = errors.New("coordinate out of range")

const earthRadiusM = 6371000

// RadiusCheck is the result of a containment test.
type RadiusCheck struct {
	Within         bool    `json:"within"`
	DistanceMeters float64 `json:"distance_meters"`
}

// DistanceMeters computes the great-circle (haversine) distance between two
// GPS coordinates in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := validate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := validate(lat2, lon2); err != nil {
		return 0, err
	}

	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c, nil
}

// IsWithinRadius reports whether (lat, lon) falls inside radiusMeters of the
// center point, along with the computed distance.
func IsWithinRadius(lat, lon, centerLat, centerLon, radiusMeters float64) (RadiusCheck, error) {
	d, err := DistanceMeters(lat, lon, centerLat, centerLon)
	if err != nil {
		return RadiusCheck{}, err
	}
	return RadiusCheck{Within: d <= radiusMeters, DistanceMeters: d}, nil
}

func validate(lat, lon float64) error {
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}
