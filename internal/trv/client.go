package trv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes caps how much of an upstream response is read. A full
// position listing for the whole network stays well under this.
const maxResponseBytes = 8 << 20 // 8MB

const defaultRequestTimeout = 30 * time.Second

// connection pooling limits; railfeed only ever talks to one upstream host
const (
	maxIdleConns        = 10
	idleConnTimeout     = 60 * time.Second
	maxConnsPerHost     = 4
	maxIdleConnsPerHost = 4
)

// schema versions of the object types railfeed queries
const (
	schemaTrainPosition     = "1.1"
	schemaSituation         = "1.5"
	schemaTrainMessage      = "1.7"
	schemaTrainStation      = "1.4"
	schemaTrainAnnouncement = "1.9"
)

// Client issues queries against the transit data API.
//
// Timeouts are applied per request via a derived context, so a caller's
// cancellation is always distinguishable from a slow upstream. Responses
// are size-limited to keep a misbehaving upstream from exhausting memory.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// NewClient creates a [Client] for the API at baseURL authenticating with
// apiKey. The client pools connections to the single upstream host.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			// no global timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				MaxConnsPerHost:     maxConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: defaultRequestTimeout,
	}
}

// TrainPositions fetches the moving-train feed. A nil since requests the
// complete current set; otherwise only entries modified after the cutoff
// are returned.
func (c *Client) TrainPositions(ctx context.Context, since *time.Time) ([]TrainPosition, error) {
	q := query{objectType: "TrainPosition", schemaVersion: schemaTrainPosition}
	if since != nil {
		q.filters = append(q.filters,
			leaf("GT", "ModifiedTime", since.UTC().Format(time.RFC3339)))
	}
	var out struct {
		TrainPosition []TrainPosition `json:"TrainPosition"`
	}
	if err := c.do(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.TrainPosition, nil
}

// Situations fetches the situation feed (feed A).
func (c *Client) Situations(ctx context.Context) ([]Situation, error) {
	q := query{objectType: "Situation", schemaVersion: schemaSituation}
	var out struct {
		Situation []Situation `json:"Situation"`
	}
	if err := c.do(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.Situation, nil
}

// TrainMessages fetches the operational message feed (feed B).
func (c *Client) TrainMessages(ctx context.Context) ([]TrainMessage, error) {
	q := query{objectType: "TrainMessage", schemaVersion: schemaTrainMessage}
	var out struct {
		TrainMessage []TrainMessage `json:"TrainMessage"`
	}
	if err := c.do(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.TrainMessage, nil
}

// StationNames fetches the advertised stations and returns the location
// signature → display name mapping.
func (c *Client) StationNames(ctx context.Context) (map[string]string, error) {
	q := query{
		objectType:    "TrainStation",
		schemaVersion: schemaTrainStation,
		filters:       []filter{leaf("EQ", "Advertised", "true")},
		includes:      []string{"LocationSignature", "AdvertisedLocationName"},
	}
	var out struct {
		TrainStation []TrainStation `json:"TrainStation"`
	}
	if err := c.do(ctx, q, &out); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.TrainStation))
	for _, st := range out.TrainStation {
		if st.LocationSignature == "" || st.AdvertisedLocationName == "" {
			continue
		}
		names[st.LocationSignature] = st.AdvertisedLocationName
	}
	return names, nil
}

// AnnouncementQuery tunes a [Client.TrainAnnouncements] request.
type AnnouncementQuery struct {
	// PerBatchLimit caps the number of records the upstream returns.
	PerBatchLimit int

	// WindowMinutes bounds the lookback for announcements, evaluated
	// server-side relative to "now".
	WindowMinutes int
}

// TrainAnnouncements fetches departure announcements for the given train
// numbers. Idents may be advertised or operational numbers; the query
// matches either kind. An empty ident list returns nothing without issuing
// a request.
func (c *Client) TrainAnnouncements(ctx context.Context, idents []string, aq AnnouncementQuery) ([]TrainAnnouncement, error) {
	if len(idents) == 0 {
		return nil, nil
	}
	joined := strings.Join(idents, ",")
	q := query{
		objectType:    "TrainAnnouncement",
		schemaVersion: schemaTrainAnnouncement,
		limit:         aq.PerBatchLimit,
		filters: []filter{
			group("AND",
				group("OR",
					leaf("IN", "AdvertisedTrainIdent", joined),
					leaf("IN", "OperationalTrainNumber", joined),
				),
				leaf("EQ", "ActivityType", "Avgang"),
				leaf("GT", "AdvertisedTimeAtLocation", dateAddExpr(aq.WindowMinutes)),
			),
		},
		includes: []string{
			"AdvertisedTrainIdent", "OperationalTrainNumber",
			"FromLocation", "ToLocation",
			"ActivityType", "AdvertisedTimeAtLocation",
		},
	}
	var out struct {
		TrainAnnouncement []TrainAnnouncement `json:"TrainAnnouncement"`
	}
	if err := c.do(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.TrainAnnouncement, nil
}

// envelope is the outer JSON shape of every response.
type envelope struct {
	Response struct {
		Result []json.RawMessage `json:"RESULT"`
	} `json:"RESPONSE"`
}

// do posts the query and decodes the first RESULT element into out.
func (c *Client) do(ctx context.Context, q query, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(q.xml(c.apiKey)))
	if err != nil {
		return fmt.Errorf("query %s: create request: %w", q.objectType, err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", q.objectType, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("query %s: read response: %w", q.objectType, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %d: %s", q.objectType, resp.StatusCode, trimForError(data))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("query %s: decode envelope: %w", q.objectType, err)
	}
	if len(env.Response.Result) == 0 {
		return fmt.Errorf("query %s: empty result envelope", q.objectType)
	}
	if err := json.Unmarshal(env.Response.Result[0], out); err != nil {
		return fmt.Errorf("query %s: decode result: %w", q.objectType, err)
	}
	return nil
}

// Close releases idle upstream connections. The client remains usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// trimForError shortens a response body for inclusion in an error message.
func trimForError(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// ParseWGS84Point parses the WKT point encoding used by the position feed,
// "POINT (lng lat)", and returns longitude and latitude.
func ParseWGS84Point(s string) (lng, lat float64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "POINT")
	if !ok {
		return 0, 0, fmt.Errorf("not a WKT point: %q", s)
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return 0, 0, fmt.Errorf("not a WKT point: %q", s)
	}
	fields := strings.Fields(rest[1 : len(rest)-1])
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("not a WKT point: %q", s)
	}
	lng, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude in %q: %w", s, err)
	}
	lat, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude in %q: %w", s, err)
	}
	return lng, lat, nil
}
