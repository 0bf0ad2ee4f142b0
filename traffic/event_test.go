package traffic

import (
	"testing"
	"time"

	"github.com/railfeed/railfeed/internal/trv"
)

func TestSeverityFromScore(t *testing.T) {
	tests := []struct {
		score int
		want  Severity
	}{
		{score: 0, want: SeverityLow},
		{score: 1, want: SeverityLow},
		{score: 2, want: SeverityMedium},
		{score: 3, want: SeverityHigh},
		{score: 4, want: SeverityCritical},
		{score: 7, want: SeverityCritical},
	}
	for _, tt := range tests {
		if got := severityFromScore(tt.score); got != tt.want {
			t.Errorf("severityFromScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestImpactLabelFromScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{score: 1, want: "Liten påverkan"},
		{score: 2, want: "Måttlig påverkan"},
		{score: 3, want: "Stor påverkan"},
		{score: 4, want: "Mycket stor påverkan"},
	}
	for _, tt := range tests {
		if got := impactLabelFromScore(tt.score); got != tt.want {
			t.Errorf("impactLabelFromScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

// The overall severity is the worst case across the primary score and every
// nested section score.
func TestMerge_WorstCaseSeverityScan(t *testing.T) {
	situations := []trv.Situation{{Deviation: []trv.Deviation{{
		ID:           "EV-1",
		Header:       "Spårfel",
		SeverityCode: 1,
		Impact: []trv.TrafficImpact{
			{SeverityCode: 1},
			{SeverityCode: 3},
			{SeverityCode: 2},
		},
	}}}}

	events := merge(situations, nil, nil)
	if len(events) != 1 {
		t.Fatalf("merge produced %d events, want 1", len(events))
	}
	if events[0].Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q", events[0].Severity, SeverityHigh)
	}
	if events[0].ImpactLabel != "Stor påverkan" {
		t.Errorf("ImpactLabel = %q, want %q", events[0].ImpactLabel, "Stor påverkan")
	}
}

func TestMerge_ScoreOnlyRises(t *testing.T) {
	situations := []trv.Situation{{Deviation: []trv.Deviation{
		{ID: "EV-1", SeverityCode: 3},
		{ID: "EV-1", SeverityCode: 2}, // later, lower score must not lower the draft
	}}}
	messages := []trv.TrainMessage{{
		EventID:       "EV-1",
		TrafficImpact: []trv.TrafficImpact{{SeverityCode: 1}},
	}}

	events := merge(situations, messages, nil)
	if len(events) != 1 {
		t.Fatalf("merge produced %d events, want 1", len(events))
	}
	if events[0].Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q (score must be monotonic)", events[0].Severity, SeverityHigh)
	}
}

func TestMerge_OppositeFeedsBecomeMerged(t *testing.T) {
	versionTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	situations := []trv.Situation{{Deviation: []trv.Deviation{{
		ID:           "EV-7",
		Header:       "Banarbete",
		SeverityCode: 2,
		VersionTime:  versionTime.Format(time.RFC3339),
	}}}}
	messages := []trv.TrainMessage{{
		EventID:             "EV-7",
		Header:              "Annan rubrik",
		ExternalDescription: "Spårbyte mellan stationerna.",
		LastUpdateDateTime:  versionTime.Add(time.Hour).Format(time.RFC3339),
	}}

	events := merge(situations, messages, nil)
	if len(events) != 1 {
		t.Fatalf("merge produced %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Source != SourceMerged {
		t.Errorf("Source = %q, want %q", ev.Source, SourceMerged)
	}
	if ev.Title != "Banarbete" {
		t.Errorf("Title = %q, want the deviation's header to win", ev.Title)
	}
	if ev.Description != "Spårbyte mellan stationerna." {
		t.Errorf("Description = %q, want the message to fill the gap", ev.Description)
	}
	if ev.UpdatedAt == nil || !ev.UpdatedAt.Equal(versionTime) {
		t.Errorf("UpdatedAt = %v, want the deviation's earlier-set %v", ev.UpdatedAt, versionTime)
	}
}

func TestMerge_SingleFeedProvenance(t *testing.T) {
	situations := []trv.Situation{{Deviation: []trv.Deviation{
		{ID: "EV-A", Header: "Signalfel"},
		{ID: "EV-A", Message: "Begränsad framkomlighet."}, // same feed, same id
	}}}
	messages := []trv.TrainMessage{{EventID: "EV-B", Header: "Försenade tåg", ReasonCodeText: "olycka"}}

	events := merge(situations, messages, nil)
	if len(events) != 2 {
		t.Fatalf("merge produced %d events, want 2", len(events))
	}
	byID := map[string]*Event{events[0].ID: events[0], events[1].ID: events[1]}
	if byID["EV-A"].Source != SourceSituation {
		t.Errorf("EV-A Source = %q, want %q", byID["EV-A"].Source, SourceSituation)
	}
	if byID["EV-B"].Source != SourceMessage {
		t.Errorf("EV-B Source = %q, want %q", byID["EV-B"].Source, SourceMessage)
	}
	if byID["EV-B"].Description != "olycka" {
		t.Errorf("EV-B Description = %q, want the reason code fallback", byID["EV-B"].Description)
	}
}

func TestMerge_SkipsEntriesWithoutID(t *testing.T) {
	situations := []trv.Situation{{Deviation: []trv.Deviation{{Header: "utan id"}}}}
	messages := []trv.TrainMessage{{Header: "utan id"}}

	if events := merge(situations, messages, nil); len(events) != 0 {
		t.Fatalf("merge produced %d events from id-less entries, want 0", len(events))
	}
}

func TestMerge_Ordering(t *testing.T) {
	at := func(h int) string {
		return time.Date(2024, 3, 1, h, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}
	situations := []trv.Situation{{Deviation: []trv.Deviation{
		{ID: "low", SeverityCode: 1, VersionTime: at(14)},
		{ID: "high-stale", SeverityCode: 3}, // no update time, sorts after dated highs
		{ID: "critical", SeverityCode: 4, VersionTime: at(9)},
		{ID: "high-fresh", SeverityCode: 3, VersionTime: at(12)},
	}}}

	events := merge(situations, nil, nil)
	want := []string{"critical", "high-fresh", "high-stale", "low"}
	if len(events) != len(want) {
		t.Fatalf("merge produced %d events, want %d", len(events), len(want))
	}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("events[%d].ID = %q, want %q", i, events[i].ID, id)
		}
	}
}

func TestSectionLabel(t *testing.T) {
	stations := map[string]string{
		"Cst": "Stockholm Central",
		"U":   "Uppsala C",
	}

	tests := []struct {
		name     string
		sections []trv.TrafficImpact
		want     string
	}{
		{
			name: "full section resolves both ends",
			sections: []trv.TrafficImpact{
				{FromLocation: []string{"Cst"}, ToLocation: []string{"U"}},
			},
			want: "Stockholm Central → Uppsala C",
		},
		{
			name: "full section beats an earlier partial one",
			sections: []trv.TrafficImpact{
				{AffectedLocation: []string{"Cst"}},
				{FromLocation: []string{"Cst"}, ToLocation: []string{"U"}},
			},
			want: "Stockholm Central → Uppsala C",
		},
		{
			name: "destination only",
			sections: []trv.TrafficImpact{
				{ToLocation: []string{"U"}},
			},
			want: "mot Uppsala C",
		},
		{
			name: "affected location only, unknown signature stays raw",
			sections: []trv.TrafficImpact{
				{AffectedLocation: []string{"Fln"}},
			},
			want: "vid Fln",
		},
		{
			name:     "no usable locations",
			sections: []trv.TrafficImpact{{}},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sectionLabel(tt.sections, stations); got != tt.want {
				t.Errorf("sectionLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSectionLabel_NilLookupKeepsSignatures(t *testing.T) {
	sections := []trv.TrafficImpact{{FromLocation: []string{"Cst"}, ToLocation: []string{"U"}}}
	if got := sectionLabel(sections, nil); got != "Cst → U" {
		t.Errorf("sectionLabel() = %q, want %q", got, "Cst → U")
	}
}
