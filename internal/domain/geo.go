package domain

import "math"

// earthRadiusKM is the spherical Earth radius used throughout; no geodesic
// or WGS84 corrections are applied anywhere in the pipeline.
const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance in kilometers between two
// coordinates given in decimal degrees.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
