package trv

// TrainIdent carries the identifiers the upstream attaches to a train run.
// Either number may be empty; both may be present on the same entry.
type TrainIdent struct {
	// AdvertisedTrainNumber is the number printed on timetables.
	AdvertisedTrainNumber string `json:"AdvertisedTrainNumber"`

	// OperationalTrainNumber is the internal dispatching number.
	OperationalTrainNumber string `json:"OperationalTrainNumber"`

	// JourneyPlanNumber identifies the planned journey the run belongs to.
	JourneyPlanNumber string `json:"JourneyPlanNumber"`

	// JourneyPlanDepartureDate is the service date of the journey plan.
	JourneyPlanDepartureDate string `json:"JourneyPlanDepartureDate"`
}

// GeoPosition holds the raw coordinate encodings of a position entry.
type GeoPosition struct {
	// WGS84 is a WKT point, e.g. "POINT (17.6167 59.8586)" (lng lat).
	WGS84 string `json:"WGS84"`

	// SWEREF99TM is the national grid encoding; unused by railfeed.
	SWEREF99TM string `json:"SWEREF99TM"`
}

// TrainPosition is one raw entry from the moving-train feed.
type TrainPosition struct {
	Train    TrainIdent  `json:"Train"`
	Position GeoPosition `json:"Position"`

	// Speed in km/h and bearing in degrees; either may be absent.
	Speed   *float64 `json:"Speed"`
	Bearing *float64 `json:"Bearing"`

	// TimeStamp is when the position was observed, ModifiedTime when the
	// entry last changed upstream. Both are ISO instants.
	TimeStamp    string `json:"TimeStamp"`
	ModifiedTime string `json:"ModifiedTime"`

	// Deleted marks a tombstone on incremental responses.
	Deleted bool `json:"Deleted"`
}

// TrafficImpact is a route section affected by a situation or message.
// Location values are station signatures, not display names.
type TrafficImpact struct {
	SeverityCode     int      `json:"SeverityCode"`
	FromLocation     []string `json:"FromLocation"`
	ToLocation       []string `json:"ToLocation"`
	AffectedLocation []string `json:"AffectedLocation"`
}

// Deviation is one entry of a situation from feed A. It carries the richer
// structured severity data: a primary severity code plus per-section codes.
type Deviation struct {
	ID           string          `json:"Id"`
	Header       string          `json:"Header"`
	Message      string          `json:"Message"`
	SeverityCode int             `json:"SeverityCode"`
	StartTime    string          `json:"StartTime"`
	EndTime      string          `json:"EndTime"`
	VersionTime  string          `json:"VersionTime"`
	Impact       []TrafficImpact `json:"TrafficImpact"`
}

// Situation groups the deviations published under one situation id.
type Situation struct {
	Deviation []Deviation `json:"Deviation"`
}

// TrainMessage is one reason-coded entry from feed B. Messages are flatter
// than deviations but may reference the same event id.
type TrainMessage struct {
	EventID             string          `json:"EventId"`
	Header              string          `json:"Header"`
	ExternalDescription string          `json:"ExternalDescription"`
	ReasonCodeText      string          `json:"ReasonCodeText"`
	TrafficImpact       []TrafficImpact `json:"TrafficImpact"`

	StartDateTime      string `json:"StartDateTime"`
	PrognosticatedEnd  string `json:"PrognosticatedEndDateTimeTrafficImpact"`
	LastUpdateDateTime string `json:"LastUpdateDateTime"`
}

// TrainStation is one row of the station lookup table.
type TrainStation struct {
	LocationSignature      string `json:"LocationSignature"`
	AdvertisedLocationName string `json:"AdvertisedLocationName"`
	Advertised             bool   `json:"Advertised"`
}

// AnnouncedLocation is a from/to entry on an announcement, ordered by the
// upstream's Order field.
type AnnouncedLocation struct {
	LocationName string `json:"LocationName"`
	Priority     int    `json:"Priority"`
	Order        int    `json:"Order"`
}

// TrainAnnouncement is one departure announcement. FromLocation and
// ToLocation describe the journey's advertised origin and destination.
type TrainAnnouncement struct {
	ActivityType             string              `json:"ActivityType"`
	AdvertisedTrainIdent     string              `json:"AdvertisedTrainIdent"`
	OperationalTrainNumber   string              `json:"OperationalTrainNumber"`
	FromLocation             []AnnouncedLocation `json:"FromLocation"`
	ToLocation               []AnnouncedLocation `json:"ToLocation"`
	AdvertisedTimeAtLocation string              `json:"AdvertisedTimeAtLocation"`
}
