// Package domain models earthquake observations reported by seismological
// agencies through FDSN event web services.
//
// # Data Sources
//
// Six agencies are polled on a cron schedule, each through its
// fdsnws/event/1/query endpoint but with a different response format:
//
//	usgs    GeoJSON FeatureCollection (format=geojson)
//	emsc    GeoJSON with EMSC-specific property keys (format=json)
//	gfz     FDSN pipe-delimited text (format=text)
//	isc     QuakeML 1.2 XML (format=xml)
//	ipgp    QuakeML 1.2 XML (format=xml)
//	geonet  QuakeML 1.2 XML (format=xml)
//
// Every agency reports the same physical earthquake with slightly different
// origin time, epicenter, depth, and magnitude. The ingesters normalize all
// of them into NormalizedEvent rows; the deduplicator clusters those rows
// and selects one canonical record per physical event.
//
// # Unit and Vocabulary Conventions
//
// Depth is kilometers, non-negative (QuakeML reports meters and is converted
// at the parser). Longitude is wrapped into [-180, 180] by adding or
// subtracting 360 before validation. Magnitude types are lowercase tags
// (mw, mb, ms, ml, ...); unknown types are preserved verbatim in lowercase.
// Review status collapses to two states: agencies publish a range of
// evaluation vocabularies (manual/automatic modes, reviewed/confirmed/final
// statuses) and anything indicating human review maps to "reviewed",
// everything else to "automatic".
//
// # Event Identity
//
// Each record is identified by event_uid = "<source>:<source_event_id>".
// The agency-local ID is extracted from format-specific conventions; QuakeML
// publicID attributes embed it as an evid= parameter (ISC), the final path
// segment of an smi: URI, or a URI fragment. Unified events carry a
// deterministic ID derived from the sorted member UIDs, so repeated dedup
// passes over the same cluster converge on the same row.
package domain
