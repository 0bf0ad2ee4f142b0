package positions

import (
	"time"

	"github.com/railfeed/railfeed/internal/trv"
)

// Train is one normalized moving-train record. A Train always has an ID,
// coordinates and a freshness timestamp; everything else is best-effort.
//
// Trains are shared by pointer across snapshots and must be treated as
// read-only by consumers. A record that changes upstream is replaced by a
// fresh allocation, never mutated in place, so pointer identity doubles as a
// cheap change check.
type Train struct {
	// ID is the stable cache key: the operational train number when the
	// feed carries one, otherwise the advertised number.
	ID string `json:"id"`

	// Label is the passenger-facing train number.
	Label string `json:"label"`

	// AdvertisedIdent and OperationalIdent are the raw join keys used for
	// route resolution. Either may be empty, never both.
	AdvertisedIdent  string `json:"advertisedIdent,omitempty"`
	OperationalIdent string `json:"operationalIdent,omitempty"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	SpeedKmh *float64 `json:"speedKmh,omitempty"`
	Bearing  *float64 `json:"bearing,omitempty"`

	// UpdatedAt is the upstream modification time of this entry and drives
	// staleness eviction.
	UpdatedAt time.Time `json:"updatedAt"`

	ScheduledDate string `json:"scheduledDate,omitempty"`
	JourneyPlanID string `json:"journeyPlanId,omitempty"`
}

// newTrain normalizes one raw feed entry. It returns nil for entries the
// cache must never admit: tombstones, entries without parseable coordinates,
// entries without any train identifier, and entries without a usable
// timestamp.
func newTrain(raw trv.TrainPosition) *Train {
	if raw.Deleted {
		return nil
	}

	lng, lat, err := trv.ParseWGS84Point(raw.Position.WGS84)
	if err != nil {
		return nil
	}

	adv := raw.Train.AdvertisedTrainNumber
	op := raw.Train.OperationalTrainNumber
	if adv == "" && op == "" {
		return nil
	}

	updated := parseInstant(raw.ModifiedTime)
	if updated.IsZero() {
		updated = parseInstant(raw.TimeStamp)
	}
	if updated.IsZero() {
		return nil
	}

	id := op
	if id == "" {
		id = adv
	}
	label := adv
	if label == "" {
		label = op
	}

	return &Train{
		ID:               id,
		Label:            label,
		AdvertisedIdent:  adv,
		OperationalIdent: op,
		Lat:              lat,
		Lng:              lng,
		SpeedKmh:         raw.Speed,
		Bearing:          raw.Bearing,
		UpdatedAt:        updated,
		ScheduledDate:    raw.Train.JourneyPlanDepartureDate,
		JourneyPlanID:    raw.Train.JourneyPlanNumber,
	}
}

// trainsEqual reports whether two records agree in every observable field.
// Used to decide whether a cached pointer can be kept across a merge.
func trainsEqual(a, b *Train) bool {
	return a.ID == b.ID &&
		a.Label == b.Label &&
		a.AdvertisedIdent == b.AdvertisedIdent &&
		a.OperationalIdent == b.OperationalIdent &&
		a.Lat == b.Lat &&
		a.Lng == b.Lng &&
		floatPtrEqual(a.SpeedKmh, b.SpeedKmh) &&
		floatPtrEqual(a.Bearing, b.Bearing) &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.ScheduledDate == b.ScheduledDate &&
		a.JourneyPlanID == b.JourneyPlanID
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// parseInstant parses an upstream ISO instant, returning the zero time when
// the value is empty or malformed.
func parseInstant(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
