package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Wire types mirror the upstream JSON, not the SDK types: the mock speaks
// the same envelope protocol the real Trafikverket API does.

type wireIdent struct {
	AdvertisedTrainNumber  string `json:"AdvertisedTrainNumber"`
	OperationalTrainNumber string `json:"OperationalTrainNumber"`
}

type wireGeo struct {
	WGS84 string `json:"WGS84"`
}

type wirePosition struct {
	Train        wireIdent `json:"Train"`
	Position     wireGeo   `json:"Position"`
	Speed        float64   `json:"Speed"`
	Bearing      float64   `json:"Bearing"`
	TimeStamp    string    `json:"TimeStamp"`
	ModifiedTime string    `json:"ModifiedTime"`
}

type wireImpact struct {
	SeverityCode int      `json:"SeverityCode"`
	FromLocation []string `json:"FromLocation"`
	ToLocation   []string `json:"ToLocation"`
}

type wireDeviation struct {
	ID           string       `json:"Id"`
	Header       string       `json:"Header"`
	Message      string       `json:"Message"`
	SeverityCode int          `json:"SeverityCode"`
	StartTime    string       `json:"StartTime"`
	VersionTime  string       `json:"VersionTime"`
	Impact       []wireImpact `json:"TrafficImpact"`
}

type wireStation struct {
	LocationSignature      string `json:"LocationSignature"`
	AdvertisedLocationName string `json:"AdvertisedLocationName"`
	Advertised             bool   `json:"Advertised"`
}

type wireLocation struct {
	LocationName string `json:"LocationName"`
	Order        int    `json:"Order"`
}

type wireAnnouncement struct {
	ActivityType             string         `json:"ActivityType"`
	AdvertisedTrainIdent     string         `json:"AdvertisedTrainIdent"`
	OperationalTrainNumber   string         `json:"OperationalTrainNumber"`
	FromLocation             []wireLocation `json:"FromLocation"`
	ToLocation               []wireLocation `json:"ToLocation"`
	AdvertisedTimeAtLocation string         `json:"AdvertisedTimeAtLocation"`
}

// city is a coordinate anchor for the simulated lines.
type city struct {
	name string
	lat  float64
	lng  float64
}

var (
	stockholm  = city{"Stockholm C", 59.3303, 18.0583}
	gothenburg = city{"Göteborg C", 57.7089, 11.9735}
	malmo      = city{"Malmö C", 55.6090, 13.0005}
	uppsala    = city{"Uppsala C", 59.8586, 17.6454}
)

// mockTrain drifts back and forth along the straight line between two
// cities, completing one direction per period.
type mockTrain struct {
	adv    string
	op     string
	from   city
	to     city
	period time.Duration
}

// position interpolates the train's location at t, ping-ponging between the
// endpoints.
func (m mockTrain) position(t time.Time, epoch time.Time) (lat, lng, bearing float64) {
	elapsed := t.Sub(epoch)
	phase := math.Mod(elapsed.Seconds()/m.period.Seconds(), 2)
	p := phase
	forward := true
	if phase > 1 {
		p = 2 - phase
		forward = false
	}

	lat = m.from.lat + (m.to.lat-m.from.lat)*p
	lng = m.from.lng + (m.to.lng-m.from.lng)*p

	dLat := m.to.lat - m.from.lat
	dLng := m.to.lng - m.from.lng
	if !forward {
		dLat, dLng = -dLat, -dLng
	}
	bearing = math.Mod(math.Atan2(dLng, dLat)*180/math.Pi+360, 360)
	return lat, lng, bearing
}

// StartMockTrafikverket runs a mock upstream API on addr. It answers the
// same XML-query/JSON-envelope protocol the real endpoint speaks, with four
// trains drifting between Swedish cities and one disruption whose severity
// rotates every 45 seconds.
//
// Call this in a goroutine before starting railfeed with
// railfeed.WithBaseURL("http://localhost" + addr).
func StartMockTrafikverket(addr string) {
	trains := []mockTrain{
		{adv: "423", op: "4423", from: stockholm, to: gothenburg, period: 8 * time.Minute},
		{adv: "525", op: "4525", from: stockholm, to: malmo, period: 10 * time.Minute},
		{adv: "40", op: "2040", from: uppsala, to: stockholm, period: 3 * time.Minute},
		{adv: "235", op: "4235", from: gothenburg, to: malmo, period: 6 * time.Minute},
	}

	epoch := time.Now()

	var (
		mu           sync.Mutex
		severity     = 2
		rotatedAt    = time.Now()
		nextRotateAt = time.Now().Add(45 * time.Second)
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q := string(body)

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(60)) * time.Millisecond)

		now := time.Now()
		stamp := now.UTC().Format(time.RFC3339)

		switch {
		case strings.Contains(q, `objecttype="TrainPosition"`):
			out := make([]wirePosition, 0, len(trains))
			for _, tr := range trains {
				lat, lng, bearing := tr.position(now, epoch)
				out = append(out, wirePosition{
					Train:        wireIdent{AdvertisedTrainNumber: tr.adv, OperationalTrainNumber: tr.op},
					Position:     wireGeo{WGS84: fmt.Sprintf("POINT (%.5f %.5f)", lng, lat)},
					Speed:        140 + 40*math.Sin(now.Sub(epoch).Seconds()/30),
					Bearing:      bearing,
					TimeStamp:    stamp,
					ModifiedTime: stamp,
				})
			}
			writeEnvelope(w, "TrainPosition", out)

		case strings.Contains(q, `objecttype="Situation"`):
			mu.Lock()
			if now.After(nextRotateAt) {
				severity++
				if severity > 4 {
					severity = 2
				}
				rotatedAt = now
				nextRotateAt = now.Add(45 * time.Second)
				slog.Info("mock disruption rotated", "severity_code", severity)
			}
			dev := wireDeviation{
				ID:           "MOCK-DEV-1",
				Header:       "Signalfel Flemingsberg",
				Message:      "Signalfel mellan Stockholm C och Flemingsberg påverkar tågtrafiken.",
				SeverityCode: severity,
				StartTime:    epoch.UTC().Format(time.RFC3339),
				VersionTime:  rotatedAt.UTC().Format(time.RFC3339),
				Impact: []wireImpact{{
					SeverityCode: severity,
					FromLocation: []string{"Cst"},
					ToLocation:   []string{"Flb"},
				}},
			}
			mu.Unlock()
			writeEnvelope(w, "Situation", []map[string]any{
				{"Deviation": []wireDeviation{dev}},
			})

		case strings.Contains(q, `objecttype="TrainMessage"`):
			writeEnvelope(w, "TrainMessage", []map[string]any{{
				"EventId":             "MOCK-MSG-1",
				"Header":              "Banarbete Uppsala",
				"ReasonCodeText":      "Banarbete",
				"ExternalDescription": "Spårarbete vid Uppsala C ger längre restider.",
				"StartDateTime":       epoch.UTC().Format(time.RFC3339),
				"LastUpdateDateTime":  epoch.UTC().Format(time.RFC3339),
				"TrafficImpact": []map[string]any{{
					"SeverityCode":     2,
					"AffectedLocation": []string{"U"},
				}},
			}})

		case strings.Contains(q, `objecttype="TrainStation"`):
			writeEnvelope(w, "TrainStation", []wireStation{
				{LocationSignature: "Cst", AdvertisedLocationName: "Stockholm C", Advertised: true},
				{LocationSignature: "G", AdvertisedLocationName: "Göteborg C", Advertised: true},
				{LocationSignature: "M", AdvertisedLocationName: "Malmö C", Advertised: true},
				{LocationSignature: "U", AdvertisedLocationName: "Uppsala C", Advertised: true},
				{LocationSignature: "Flb", AdvertisedLocationName: "Flemingsberg", Advertised: true},
			})

		case strings.Contains(q, `objecttype="TrainAnnouncement"`):
			out := make([]wireAnnouncement, 0, len(trains))
			for _, tr := range trains {
				out = append(out, wireAnnouncement{
					ActivityType:             "Avgang",
					AdvertisedTrainIdent:     tr.adv,
					OperationalTrainNumber:   tr.op,
					FromLocation:             []wireLocation{{LocationName: tr.from.name, Order: 0}},
					ToLocation:               []wireLocation{{LocationName: tr.to.name, Order: 0}},
					AdvertisedTimeAtLocation: now.Add(time.Hour).UTC().Format(time.RFC3339),
				})
			}
			writeEnvelope(w, "TrainAnnouncement", out)

		default:
			http.Error(w, "unknown object type", http.StatusBadRequest)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

// writeEnvelope wraps a payload in the upstream response envelope.
func writeEnvelope(w http.ResponseWriter, key string, payload any) {
	env := map[string]any{
		"RESPONSE": map[string]any{
			"RESULT": []any{map[string]any{key: payload}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
