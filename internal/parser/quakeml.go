package parser

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// magPreference ranks magnitude types for events that carry several
// magnitudes but no preferredMagnitudeID (the ISC quirk). Types not listed
// rank after all listed ones; ties break by document order.
var magPreference = []string{"mw", "mb", "ms"}

// QuakeML parses QuakeML 1.2 XML as served by FDSN format=xml endpoints
// (ISC, IPGP, GeoNet). Element matching is on local names, so payloads under
// the http://quakeml.org/xmlns/bed/1.2 namespace and payloads with no
// namespace at all both decode.
type QuakeML struct {
	source domain.Source
}

// NewQuakeML creates a QuakeML parser emitting events for one source.
func NewQuakeML(source domain.Source) *QuakeML {
	return &QuakeML{source: source}
}

type qmlDocument struct {
	EventParameters struct {
		Events []qmlEvent `xml:"event"`
	} `xml:"eventParameters"`
}

type qmlEvent struct {
	PublicID             string           `xml:"publicID,attr"`
	PreferredOriginID    string           `xml:"preferredOriginID"`
	PreferredMagnitudeID string           `xml:"preferredMagnitudeID"`
	Descriptions         []qmlDescription `xml:"description"`
	Origins              []qmlOrigin      `xml:"origin"`
	Magnitudes           []qmlMagnitude   `xml:"magnitude"`
}

type qmlDescription struct {
	Type string `xml:"type"`
	Text string `xml:"text"`
}

type qmlOrigin struct {
	PublicID         string      `xml:"publicID,attr"`
	Time             qmlQuantity `xml:"time"`
	Latitude         qmlQuantity `xml:"latitude"`
	Longitude        qmlQuantity `xml:"longitude"`
	Depth            qmlQuantity `xml:"depth"`
	EvaluationMode   string      `xml:"evaluationMode"`
	EvaluationStatus string      `xml:"evaluationStatus"`
	CreationInfo     struct {
		Author string `xml:"author"`
	} `xml:"creationInfo"`
}

type qmlMagnitude struct {
	PublicID string      `xml:"publicID,attr"`
	Mag      qmlQuantity `xml:"mag"`
	Type     string      `xml:"type"`
}

// qmlQuantity keeps value and uncertainty as strings so absent elements are
// distinguishable from zero.
type qmlQuantity struct {
	Value       string `xml:"value"`
	Uncertainty string `xml:"uncertainty"`
}

// Parse decodes the document and converts each <event>. A per-event problem
// skips that event; an unparseable document returns an error.
func (p *QuakeML) Parse(rawPayload string, fetchedAt time.Time) ([]domain.NormalizedEvent, error) {
	if strings.TrimSpace(rawPayload) == "" {
		return nil, nil
	}

	var doc qmlDocument
	if err := xml.Unmarshal([]byte(rawPayload), &doc); err != nil {
		return nil, fmt.Errorf("parse quakeml: %w", err)
	}

	events := make([]domain.NormalizedEvent, 0, len(doc.EventParameters.Events))
	for i := range doc.EventParameters.Events {
		if e, ok := p.parseEvent(&doc.EventParameters.Events[i], fetchedAt); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

func (p *QuakeML) parseEvent(ev *qmlEvent, fetchedAt time.Time) (domain.NormalizedEvent, bool) {
	id := extractEventID(ev.PublicID)
	if id == "" {
		return domain.NormalizedEvent{}, false
	}

	origin := selectOrigin(ev)
	if origin == nil {
		return domain.NormalizedEvent{}, false
	}
	mag := selectMagnitude(ev)
	if mag == nil || mag.Mag.Value == "" {
		return domain.NormalizedEvent{}, false
	}

	originTime, err := parseISOTimestamp(origin.Time.Value)
	if err != nil {
		return domain.NormalizedEvent{}, false
	}
	lat, err := strconv.ParseFloat(origin.Latitude.Value, 64)
	if err != nil {
		return domain.NormalizedEvent{}, false
	}
	lon, err := strconv.ParseFloat(origin.Longitude.Value, 64)
	if err != nil {
		return domain.NormalizedEvent{}, false
	}
	magValue, err := strconv.ParseFloat(mag.Mag.Value, 64)
	if err != nil {
		return domain.NormalizedEvent{}, false
	}

	// QuakeML depth and depth uncertainty are meters.
	var depthKM float64
	if origin.Depth.Value != "" {
		depthM, err := strconv.ParseFloat(origin.Depth.Value, 64)
		if err != nil {
			return domain.NormalizedEvent{}, false
		}
		depthKM = depthM / 1000.0
	}

	depthErr := floatOrNil(origin.Depth.Uncertainty)
	if depthErr != nil {
		*depthErr /= 1000.0
	}

	place := extractDescription(ev)

	return domain.NormalizedEvent{
		EventUID:       domain.EventUID(p.source, id),
		Source:         p.source,
		SourceEventID:  id,
		OriginTimeUTC:  originTime,
		Latitude:       lat,
		Longitude:      domain.WrapLongitude(lon),
		DepthKM:        depthKM,
		MagnitudeValue: magValue,
		MagnitudeType:  normalizeMagType(mag.Type),
		Place:          place,
		Region:         place,
		LatErrorKM:     floatOrNil(origin.Latitude.Uncertainty),
		LonErrorKM:     floatOrNil(origin.Longitude.Uncertainty),
		DepthErrorKM:   depthErr,
		MagError:       floatOrNil(mag.Mag.Uncertainty),
		Status:         mapEvaluation(origin.EvaluationMode, origin.EvaluationStatus),
		Author:         strings.TrimSpace(origin.CreationInfo.Author),
		FetchedAt:      fetchedAt,
	}, true
}

// extractEventID pulls the agency-local event ID out of a publicID URI.
// Conventions, in priority order:
//
//	smi:ISC/evid=600516598      -> 600516598  (ISC)
//	smi:org.example/event/12345 -> 12345      (last path segment)
//	quakeml:example#ev99        -> ev99       (fragment)
//	2014p072856                 -> verbatim
func extractEventID(publicID string) string {
	if publicID == "" {
		return ""
	}
	if i := strings.Index(publicID, "evid="); i >= 0 {
		return publicID[i+len("evid="):]
	}
	if i := strings.LastIndex(publicID, "/"); i >= 0 {
		return publicID[i+1:]
	}
	if i := strings.LastIndex(publicID, "#"); i >= 0 {
		return publicID[i+1:]
	}
	return publicID
}

// selectOrigin resolves preferredOriginID, falling back to the first origin.
func selectOrigin(ev *qmlEvent) *qmlOrigin {
	if len(ev.Origins) == 0 {
		return nil
	}
	if want := strings.TrimSpace(ev.PreferredOriginID); want != "" {
		for i := range ev.Origins {
			if ev.Origins[i].PublicID == want {
				return &ev.Origins[i]
			}
		}
	}
	return &ev.Origins[0]
}

// selectMagnitude resolves preferredMagnitudeID. When the document carries
// none, the magnitude whose type appears earliest in magPreference wins,
// with unlisted types ranking last and ties breaking by document order.
func selectMagnitude(ev *qmlEvent) *qmlMagnitude {
	if len(ev.Magnitudes) == 0 {
		return nil
	}
	if want := strings.TrimSpace(ev.PreferredMagnitudeID); want != "" {
		for i := range ev.Magnitudes {
			if ev.Magnitudes[i].PublicID == want {
				return &ev.Magnitudes[i]
			}
		}
		return &ev.Magnitudes[0]
	}

	best, bestRank := &ev.Magnitudes[0], magRank(ev.Magnitudes[0].Type)
	for i := 1; i < len(ev.Magnitudes); i++ {
		if r := magRank(ev.Magnitudes[i].Type); r < bestRank {
			best, bestRank = &ev.Magnitudes[i], r
		}
	}
	return best
}

func magRank(magType string) int {
	t := strings.ToLower(strings.TrimSpace(magType))
	for i, p := range magPreference {
		if t == p {
			return i
		}
	}
	return len(magPreference)
}

// mapEvaluation collapses QuakeML evaluation vocabulary to the two-state
// status. Mode wins over status when both are present.
func mapEvaluation(mode, status string) domain.Status {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "manual":
		return domain.StatusReviewed
	case "automatic":
		return domain.StatusAutomatic
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "reviewed", "confirmed", "final":
		return domain.StatusReviewed
	}
	return domain.StatusAutomatic
}

// extractDescription picks the place string: a description typed
// "flinn-engdahl region" or "region name" wins, else the first description
// with text.
func extractDescription(ev *qmlEvent) string {
	for _, d := range ev.Descriptions {
		t := strings.ToLower(strings.TrimSpace(d.Type))
		if (t == "flinn-engdahl region" || t == "region name") && strings.TrimSpace(d.Text) != "" {
			return strings.TrimSpace(d.Text)
		}
	}
	for _, d := range ev.Descriptions {
		if strings.TrimSpace(d.Text) != "" {
			return strings.TrimSpace(d.Text)
		}
	}
	return ""
}

func floatOrNil(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
