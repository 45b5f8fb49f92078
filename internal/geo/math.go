package geo

import "math"

// NormalizeLon wraps a longitude into [-180, 180].
// Values already in range are returned unchanged so 180 stays 180.
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}

	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
