package trv

import (
	"strings"
	"testing"
)

func TestQueryXML_MinimalQuery(t *testing.T) {
	q := query{objectType: "TrainPosition", schemaVersion: "1.1"}

	got := q.xml("secret")
	want := `<REQUEST><LOGIN authenticationkey="secret"/>` +
		`<QUERY objecttype="TrainPosition" schemaversion="1.1"></QUERY></REQUEST>`
	if got != want {
		t.Errorf("xml() = %q, want %q", got, want)
	}
}

func TestQueryXML_FiltersLimitAndIncludes(t *testing.T) {
	q := query{
		objectType:    "TrainAnnouncement",
		schemaVersion: "1.9",
		limit:         400,
		filters: []filter{
			group("AND",
				group("OR",
					leaf("IN", "AdvertisedTrainIdent", "123,456"),
					leaf("IN", "OperationalTrainNumber", "123,456"),
				),
				leaf("EQ", "ActivityType", "Avgang"),
			),
		},
		includes: []string{"FromLocation", "ToLocation"},
	}

	got := q.xml("k")

	for _, want := range []string{
		`limit="400"`,
		`<AND><OR><IN name="AdvertisedTrainIdent" value="123,456"/>`,
		`<IN name="OperationalTrainNumber" value="123,456"/></OR>`,
		`<EQ name="ActivityType" value="Avgang"/></AND>`,
		`<INCLUDE>FromLocation</INCLUDE><INCLUDE>ToLocation</INCLUDE>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("xml() missing %q in:\n%s", want, got)
		}
	}
}

func TestQueryXML_EscapesValues(t *testing.T) {
	q := query{
		objectType:    "TrainStation",
		schemaVersion: "1.4",
		filters:       []filter{leaf("EQ", "Name", `A<B>&"C"`)},
	}

	got := q.xml(`key&"`)

	if !strings.Contains(got, `authenticationkey="key&amp;&quot;"`) {
		t.Errorf("xml() did not escape the api key: %s", got)
	}
	if !strings.Contains(got, `value="A&lt;B&gt;&amp;&quot;C&quot;"`) {
		t.Errorf("xml() did not escape filter value: %s", got)
	}
}

func TestDateAddExpr(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{2880, "$dateadd(-2.00:00:00)"},
		{90, "$dateadd(-0.01:30:00)"},
		{1, "$dateadd(-0.00:01:00)"},
		{-60, "$dateadd(-0.01:00:00)"},
	}

	for _, tt := range tests {
		if got := dateAddExpr(tt.minutes); got != tt.want {
			t.Errorf("dateAddExpr(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestParseWGS84Point(t *testing.T) {
	tests := []struct {
		in       string
		lng, lat float64
		wantErr  bool
	}{
		{in: "POINT (17.6167 59.8586)", lng: 17.6167, lat: 59.8586},
		{in: "POINT(12.0 57.7)", lng: 12, lat: 57.7},
		{in: "  POINT ( -0.5 51.5 )  ", lng: -0.5, lat: 51.5},
		{in: "LINESTRING (1 2, 3 4)", wantErr: true},
		{in: "POINT (abc 59.8)", wantErr: true},
		{in: "POINT (17.6)", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		lng, lat, err := ParseWGS84Point(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWGS84Point(%q) error = nil, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWGS84Point(%q) error = %v", tt.in, err)
			continue
		}
		if lng != tt.lng || lat != tt.lat {
			t.Errorf("ParseWGS84Point(%q) = (%v, %v), want (%v, %v)", tt.in, lng, lat, tt.lng, tt.lat)
		}
	}
}
