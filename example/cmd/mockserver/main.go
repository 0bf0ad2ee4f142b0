// Standalone mock upstream for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/railfeed serve -c example/config.yaml
//
// Unlike the in-process mock in example/mock_server.go this one serves a
// static scene: two parked trains and one fixed disruption. Timestamps are
// refreshed per request so the trains never go stale.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	fmt.Println("Mock Trafikverket upstream starting on :9999")
	fmt.Println("Serves 2 static trains and 1 disruption")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q := string(body)
		stamp := time.Now().UTC().Format(time.RFC3339)

		switch {
		case strings.Contains(q, `objecttype="TrainPosition"`):
			writeEnvelope(w, "TrainPosition", []map[string]any{
				{
					"Train":        map[string]any{"AdvertisedTrainNumber": "423", "OperationalTrainNumber": "4423"},
					"Position":     map[string]any{"WGS84": "POINT (18.05830 59.33030)"},
					"Speed":        0.0,
					"TimeStamp":    stamp,
					"ModifiedTime": stamp,
				},
				{
					"Train":        map[string]any{"AdvertisedTrainNumber": "525", "OperationalTrainNumber": "4525"},
					"Position":     map[string]any{"WGS84": "POINT (11.97350 57.70890)"},
					"Speed":        0.0,
					"TimeStamp":    stamp,
					"ModifiedTime": stamp,
				},
			})

		case strings.Contains(q, `objecttype="Situation"`):
			writeEnvelope(w, "Situation", []map[string]any{{
				"Deviation": []map[string]any{{
					"Id":           "MOCK-DEV-1",
					"Header":       "Signalfel Flemingsberg",
					"Message":      "Signalfel mellan Stockholm C och Flemingsberg påverkar tågtrafiken.",
					"SeverityCode": 3,
					"StartTime":    stamp,
					"VersionTime":  stamp,
					"TrafficImpact": []map[string]any{{
						"SeverityCode": 3,
						"FromLocation": []string{"Cst"},
						"ToLocation":   []string{"Flb"},
					}},
				}},
			}})

		case strings.Contains(q, `objecttype="TrainMessage"`):
			writeEnvelope(w, "TrainMessage", []map[string]any{})

		case strings.Contains(q, `objecttype="TrainStation"`):
			writeEnvelope(w, "TrainStation", []map[string]any{
				{"LocationSignature": "Cst", "AdvertisedLocationName": "Stockholm C", "Advertised": true},
				{"LocationSignature": "G", "AdvertisedLocationName": "Göteborg C", "Advertised": true},
				{"LocationSignature": "Flb", "AdvertisedLocationName": "Flemingsberg", "Advertised": true},
			})

		case strings.Contains(q, `objecttype="TrainAnnouncement"`):
			writeEnvelope(w, "TrainAnnouncement", []map[string]any{
				{
					"ActivityType":             "Avgang",
					"AdvertisedTrainIdent":     "423",
					"OperationalTrainNumber":   "4423",
					"FromLocation":             []map[string]any{{"LocationName": "Stockholm C", "Order": 0}},
					"ToLocation":               []map[string]any{{"LocationName": "Göteborg C", "Order": 0}},
					"AdvertisedTimeAtLocation": stamp,
				},
				{
					"ActivityType":             "Avgang",
					"AdvertisedTrainIdent":     "525",
					"OperationalTrainNumber":   "4525",
					"FromLocation":             []map[string]any{{"LocationName": "Göteborg C", "Order": 0}},
					"ToLocation":               []map[string]any{{"LocationName": "Malmö C", "Order": 0}},
					"AdvertisedTimeAtLocation": stamp,
				},
			})

		default:
			http.Error(w, "unknown object type", http.StatusBadRequest)
		}
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

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
