package traffic

import (
	"sort"
	"time"

	"github.com/railfeed/railfeed/internal/trv"
)

// Severity grades how hard an event hits traffic.
//
// Severity is a string type with four predefined values so it serializes
// readably; ordering goes through the internal rank.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// rank orders severities for sorting; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// severityFromScore maps an upstream severity code to the enum: 4 and above
// is critical, 3 high, 2 medium, everything else low.
func severityFromScore(score int) Severity {
	switch {
	case score >= 4:
		return SeverityCritical
	case score >= 3:
		return SeverityHigh
	case score >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// impactLabelFromScore derives the Swedish impact text from the same score
// the severity enum is built from.
func impactLabelFromScore(score int) string {
	switch {
	case score >= 4:
		return "Mycket stor påverkan"
	case score >= 3:
		return "Stor påverkan"
	case score >= 2:
		return "Måttlig påverkan"
	default:
		return "Liten påverkan"
	}
}

// Source tags which upstream feed produced an event.
type Source string

const (
	// SourceSituation marks events built from the deviation feed only.
	SourceSituation Source = "situation"

	// SourceMessage marks events built from the train message feed only.
	SourceMessage Source = "message"

	// SourceMerged marks events both feeds referenced by the same id.
	SourceMerged Source = "merged"
)

// Event is one finished traffic event. Events are shared by pointer across
// snapshots and must be treated as read-only; a changed event is replaced by
// a fresh allocation.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Severity Severity `json:"severity"`

	// ImpactLabel is the Swedish impact tier text derived from the worst
	// observed severity score.
	ImpactLabel string `json:"impactLabel,omitempty"`

	// SectionLabel describes the affected stretch, "X → Y" when a full
	// section is known, otherwise "mot X" or "vid X". Empty when the
	// feeds carried no usable locations.
	SectionLabel string `json:"sectionLabel,omitempty"`

	StartsAt  *time.Time `json:"startsAt,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	Source Source `json:"source"`
}

func eventsEqual(a, b *Event) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.Severity == b.Severity &&
		a.ImpactLabel == b.ImpactLabel &&
		a.SectionLabel == b.SectionLabel &&
		timePtrEqual(a.StartsAt, b.StartsAt) &&
		timePtrEqual(a.EndsAt, b.EndsAt) &&
		timePtrEqual(a.UpdatedAt, b.UpdatedAt) &&
		a.Source == b.Source
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// draft accumulates partial fields from either feed before finalization.
// Drafts live for one poll cycle only; just the finished [Event] survives.
//
// Field rules: the first feed to set a field owns it, later sources only
// fill gaps. The severity score is the exception and only ever rises across
// partial updates.
type draft struct {
	id          string
	title       string
	description string
	score       int
	sections    []trv.TrafficImpact
	startsAt    *time.Time
	endsAt      *time.Time
	updatedAt   *time.Time
	source      Source
}

func (d *draft) bumpScore(score int) {
	if score > d.score {
		d.score = score
	}
}

func (d *draft) foldDeviation(dev trv.Deviation) {
	if d.title == "" {
		d.title = dev.Header
	}
	if d.description == "" {
		d.description = dev.Message
	}
	d.bumpScore(dev.SeverityCode)
	for _, imp := range dev.Impact {
		d.bumpScore(imp.SeverityCode)
		d.sections = append(d.sections, imp)
	}
	if d.startsAt == nil {
		d.startsAt = parseTimePtr(dev.StartTime)
	}
	if d.endsAt == nil {
		d.endsAt = parseTimePtr(dev.EndTime)
	}
	if d.updatedAt == nil {
		d.updatedAt = parseTimePtr(dev.VersionTime)
	}
}

func (d *draft) foldMessage(msg trv.TrainMessage) {
	if d.title == "" {
		d.title = msg.Header
	}
	if d.description == "" {
		if msg.ExternalDescription != "" {
			d.description = msg.ExternalDescription
		} else {
			d.description = msg.ReasonCodeText
		}
	}
	for _, imp := range msg.TrafficImpact {
		d.bumpScore(imp.SeverityCode)
		d.sections = append(d.sections, imp)
	}
	if d.startsAt == nil {
		d.startsAt = parseTimePtr(msg.StartDateTime)
	}
	if d.endsAt == nil {
		d.endsAt = parseTimePtr(msg.PrognosticatedEnd)
	}
	if d.updatedAt == nil {
		d.updatedAt = parseTimePtr(msg.LastUpdateDateTime)
	}
}

func (d *draft) finalize(stations map[string]string) *Event {
	return &Event{
		ID:           d.id,
		Title:        d.title,
		Description:  d.description,
		Severity:     severityFromScore(d.score),
		ImpactLabel:  impactLabelFromScore(d.score),
		SectionLabel: sectionLabel(d.sections, stations),
		StartsAt:     d.startsAt,
		EndsAt:       d.endsAt,
		UpdatedAt:    d.updatedAt,
		Source:       d.source,
	}
}

// merge folds both feeds into the finished, sorted event list. The deviation
// feed is folded first and owns field priority; messages referencing the
// same event id fill gaps and flip the provenance to merged. stations maps
// location signatures to display names and may be nil.
func merge(situations []trv.Situation, messages []trv.TrainMessage, stations map[string]string) []*Event {
	drafts := make(map[string]*draft)
	var order []string

	draftFor := func(id string, src Source) *draft {
		d, ok := drafts[id]
		if !ok {
			d = &draft{id: id, source: src}
			drafts[id] = d
			order = append(order, id)
			return d
		}
		if d.source != src {
			d.source = SourceMerged
		}
		return d
	}

	for _, sit := range situations {
		for _, dev := range sit.Deviation {
			if dev.ID == "" {
				continue
			}
			draftFor(dev.ID, SourceSituation).foldDeviation(dev)
		}
	}
	for _, msg := range messages {
		if msg.EventID == "" {
			continue
		}
		draftFor(msg.EventID, SourceMessage).foldMessage(msg)
	}

	events := make([]*Event, 0, len(order))
	for _, id := range order {
		events = append(events, drafts[id].finalize(stations))
	}

	// worst first, freshest first within a severity; events without a
	// usable update time sort last
	sort.SliceStable(events, func(i, j int) bool {
		if a, b := events[i].Severity.rank(), events[j].Severity.rank(); a != b {
			return a > b
		}
		return timeOrZero(events[i].UpdatedAt).After(timeOrZero(events[j].UpdatedAt))
	})
	return events
}

// sectionLabel scans the accumulated route sections for the first usable
// full section, then falls back to direction-only and single-location forms.
// Signatures resolve through stations, keeping the raw signature on a miss.
func sectionLabel(sections []trv.TrafficImpact, stations map[string]string) string {
	for _, sec := range sections {
		from, to := firstNonEmpty(sec.FromLocation), firstNonEmpty(sec.ToLocation)
		if from != "" && to != "" {
			return stationName(stations, from) + " → " + stationName(stations, to)
		}
	}
	for _, sec := range sections {
		if to := firstNonEmpty(sec.ToLocation); to != "" {
			return "mot " + stationName(stations, to)
		}
	}
	for _, sec := range sections {
		if at := firstNonEmpty(sec.AffectedLocation); at != "" {
			return "vid " + stationName(stations, at)
		}
	}
	return ""
}

func stationName(stations map[string]string, signature string) string {
	if name, ok := stations[signature]; ok && name != "" {
		return name
	}
	return signature
}

func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
