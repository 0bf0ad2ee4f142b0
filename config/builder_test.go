package config

import (
	"testing"

	"github.com/railfeed/railfeed"
)

func TestBuildOptions_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
api:
  key: test-key
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts := BuildOptions(cfg)

	// base URL and prefs path are unset, so only the always-on options
	if len(opts) != 7 {
		t.Errorf("len(opts) = %d, want 7", len(opts))
	}

	rf, err := railfeed.New(opts...)
	if err != nil {
		t.Fatalf("New() with built options error = %v", err)
	}
	if rf.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", rf.Port())
	}
}

func TestBuildOptions_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 9090

api:
  key: test-key
  base_url: http://localhost:9191/v2/data.json

positions:
  interval: 30s
  stale_after: 5m

events:
  interval: 2m

routes:
  batch_size: 120

prefs:
  path: /tmp/railfeed-prefs.json

metrics:
  enabled: false
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts := BuildOptions(cfg)
	if len(opts) != 9 {
		t.Errorf("len(opts) = %d, want 9", len(opts))
	}

	rf, err := railfeed.New(opts...)
	if err != nil {
		t.Fatalf("New() with built options error = %v", err)
	}
	if rf.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", rf.Port())
	}
}

// Parse validates everything New would reject, so built options never fail
// construction. This guards the two layers against drifting apart.
func TestBuildOptions_ParsedConfigAlwaysConstructs(t *testing.T) {
	configs := []string{
		`
api:
  key: k
positions:
  interval: 5s
  stale_after: 5s
`,
		`
api:
  key: k
routes:
  batch_size: 400
`,
		`
api:
  key: k
events:
  interval: 1h
`,
	}

	for i, yaml := range configs {
		cfg, err := Parse([]byte(yaml))
		if err != nil {
			t.Fatalf("config %d: Parse() error = %v", i, err)
		}
		if _, err := railfeed.New(BuildOptions(cfg)...); err != nil {
			t.Errorf("config %d: New() error = %v", i, err)
		}
	}
}
