package domain

// Region is a broad geographic bucket used to rank agencies by how well
// they cover a location.
type Region string

const (
	RegionAmericas    Region = "americas"
	RegionEurope      Region = "europe"
	RegionAfrica      Region = "africa"
	RegionAsiaPacific Region = "asia_pacific"
	RegionGlobal      Region = "global"
)

// ClassifyRegion buckets a coordinate into one of the five regions.
// First match wins; the ordering is load-bearing (the bands overlap, and
// coordinates no band claims fall through to global). Changing this to a
// nearest-reference classification would silently change preferred-source
// selection for border events, so don't.
func ClassifyRegion(lat, lon float64) Region {
	switch {
	case lon >= -170 && lon <= -30:
		return RegionAmericas
	case lon > -30 && lon <= 45 && lat >= 30:
		return RegionEurope
	case lon >= -20 && lon <= 55 && lat < 30:
		return RegionAfrica
	case lon > 45 || lon < -170:
		return RegionAsiaPacific
	default:
		return RegionGlobal
	}
}

var regionPriorities = map[Region][]Source{
	RegionAmericas:    {SourceUSGS, SourceEMSC, SourceGFZ, SourceISC, SourceIPGP, SourceGeoNet},
	RegionEurope:      {SourceEMSC, SourceGFZ, SourceUSGS, SourceISC, SourceIPGP, SourceGeoNet},
	RegionAfrica:      {SourceISC, SourceEMSC, SourceIPGP, SourceUSGS, SourceGFZ, SourceGeoNet},
	RegionAsiaPacific: {SourceISC, SourceUSGS, SourceGeoNet, SourceEMSC, SourceGFZ, SourceIPGP},
	RegionGlobal:      {SourceUSGS, SourceEMSC, SourceISC, SourceGFZ, SourceIPGP, SourceGeoNet},
}

// SourcePriority returns the agency preference order for a location,
// highest priority first.
func SourcePriority(lat, lon float64) []Source {
	return regionPriorities[ClassifyRegion(lat, lon)]
}
