package utils

import "math"

// HaversineDistance calculates the distance between two points on Earth using the Haversine formula
// Returns distance in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000

	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// IsLocationValid checks if the provided coordinates are valid
func IsLocationValid(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceBetween returns the rounded distance in meters, or nil when either
// side lacks a complete coordinate.
func DistanceBetween(lat1, lng1, lat2, lng2 *float64) *float64 {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return nil
	}
	d := math.Round(HaversineDistance(*lat1, *lng1, *lat2, *lng2))
	return &d
}
