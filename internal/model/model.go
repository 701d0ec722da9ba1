// Package model defines the canonical data schema shared across the
// fetcher, normalizers, store, and clusterer: Source, Item, Incident,
// Place, and the event-bus payloads.
package model

import "time"

// Category is the closed set of incident/item categories.
type Category string

const (
	CategoryEarthquake        Category = "earthquake"
	CategoryWeatherAlert      Category = "weather_alert"
	CategoryTropicalCyclone   Category = "tropical_cyclone"
	CategoryTsunami           Category = "tsunami"
	CategoryVolcano           Category = "volcano"
	CategoryWildfire          Category = "wildfire"
	CategoryAviationDisrupt   Category = "aviation_disruption"
	CategoryHealthAdvisory    Category = "health_advisory"
	CategoryTravelAdvisory    Category = "travel_advisory"
	CategoryCyberCVE          Category = "cyber_cve"
	CategoryCyberKEV          Category = "cyber_kev"
	CategoryDisaster          Category = "disaster"
	CategoryMaritimeWarning   Category = "maritime_warning"
	CategoryNews              Category = "news"
	CategorySocial            Category = "social"
)

// LocationConfidence is the location-quality ladder, best to worst.
type LocationConfidence string

const (
	ConfidenceExact          LocationConfidence = "A_exact"
	ConfidenceCoordsInText   LocationConfidence = "B_coords_in_text"
	ConfidencePlaceMatch     LocationConfidence = "B_place_match"
	ConfidenceCountry        LocationConfidence = "C_country"
	ConfidenceSourceDefault  LocationConfidence = "C_source_default"
	ConfidenceUnknown        LocationConfidence = "U_unknown"
)

// ladderRank implements the promotion ranking from spec §4.7: "on match".
var ladderRank = map[LocationConfidence]int{
	ConfidenceExact:         30,
	ConfidenceCoordsInText:  20,
	ConfidencePlaceMatch:    20,
	ConfidenceCountry:       10,
	ConfidenceSourceDefault: 10,
	ConfidenceUnknown:       0,
}

// Rank returns the ladder rank used to decide whether a new confidence value
// should be promoted onto an incident. Unknown confidences rank lowest.
func (c LocationConfidence) Rank() int {
	return ladderRank[c]
}

// SourceType is the feed format family.
type SourceType string

const (
	SourceTypeRSS      SourceType = "rss"
	SourceTypeGeoJSON  SourceType = "geojson_api"
	SourceTypeJSON     SourceType = "json_api"
	SourceTypeXML      SourceType = "xml_api"
	SourceTypeCSV      SourceType = "csv_api"
	SourceTypeSocial   SourceType = "social"
)

// Source is a polled feed descriptor, persisted across restarts.
type Source struct {
	SourceID   string
	Name       string
	SourceType SourceType
	URL        string
	PollIntervalSeconds int
	Enabled    bool

	// Conditional-cache state.
	ETag         string
	LastModified string

	// Schedule state.
	NextFetchAt        time.Time
	LastFetchAt        time.Time
	LastSuccessAt      time.Time
	LastErrorAt        time.Time
	ConsecutiveFailures int
	LastStatusCode      int
	LastFetchMS         int64
	LastError           string

	SuccessCount int64
	ErrorCount   int64

	Cursor string
}

// Item is a canonical normalized record.
type Item struct {
	ItemID     string
	SourceID   string
	SourceType SourceType
	ExternalID string // empty means null

	URL     string
	Title   string
	Summary string
	Content string

	PublishedAt time.Time
	UpdatedAt   time.Time
	FetchedAt   time.Time

	Category Category
	Tags     []string

	GeomGeoJSON string
	Lat         *float64
	Lon         *float64
	LocationName       string
	LocationConfidence LocationConfidence
	LocationRationale  string

	Raw string // source-specific JSON blob

	HashTitle   string
	HashContent string
	SimHash     int64 // signed 64-bit, per spec §9
}

// BBox is a (minlon,minlat,maxlon,maxlat) bounding box.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Status is an incident lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusCooling  Status = "cooling"
	StatusResolved Status = "resolved"
)

// Incident is a cluster of related items.
type Incident struct {
	IncidentID string
	Title      string
	Summary    string
	Category   Category

	FirstSeenAt time.Time
	LastSeenAt  time.Time
	LastItemAt  time.Time
	Status      Status

	SeverityScore float64

	GeomGeoJSON string
	Lat         *float64
	Lon         *float64
	BBox        *BBox

	LocationConfidence LocationConfidence
	LocationRationale  string

	IncidentSimHash int64
	TokenSignature  string

	ItemCount   int
	SourceCount int
}

// Place is a gazetteer entry.
type PlaceKind string

const (
	PlaceKindCountry    PlaceKind = "country"
	PlaceKindAdmin1     PlaceKind = "admin1"
	PlaceKindPopulated  PlaceKind = "populated"
)

type Place struct {
	Kind           PlaceKind
	Name           string
	NormalizedName string
	Country        string
	Lat            float64
	Lon            float64
}

// EventType tags event-bus payloads.
type EventType string

const (
	EventIncidentCreated EventType = "incident.created"
	EventIncidentUpdated EventType = "incident.updated"
	EventSourceHealth    EventType = "source.health"
)

// Event is the opaque envelope published on the event bus.
type Event struct {
	Type EventType
	Data map[string]any
}

// IncidentEventPayload builds the data map for an incident create/update event.
func IncidentEventPayload(evtType EventType, inc Incident) Event {
	data := map[string]any{
		"incident_id":   inc.IncidentID,
		"title":         inc.Title,
		"summary":       inc.Summary,
		"last_seen_at":  inc.LastSeenAt,
		"category":      string(inc.Category),
		"severity_score": inc.SeverityScore,
		"source_count":  inc.SourceCount,
		"item_count":    inc.ItemCount,
	}
	if inc.Lat != nil {
		data["lat"] = *inc.Lat
	}
	if inc.Lon != nil {
		data["lon"] = *inc.Lon
	}
	return Event{Type: evtType, Data: data}
}

// SourceHealthPayload builds a source.health event.
func SourceHealthPayload(sourceID string, status *int, backoffSeconds *int) Event {
	data := map[string]any{"source_id": sourceID}
	if status != nil {
		data["status"] = *status
	}
	if backoffSeconds != nil {
		data["backoff"] = *backoffSeconds
	}
	return Event{Type: EventSourceHealth, Data: data}
}
