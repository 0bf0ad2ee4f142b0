package prefs

// Prefs is the full set of user view preferences.
type Prefs struct {
	ShowEvents        bool     `json:"showEvents"`
	ShowOnlyPassenger bool     `json:"showOnlyPassenger"`
	MapStyle          string   `json:"mapStyle"`
	Favourites        []string `json:"favourites,omitempty"`
}

// Default returns the preferences applied before anything was saved.
func Default() Prefs {
	return Prefs{
		ShowEvents:        true,
		ShowOnlyPassenger: true,
		MapStyle:          "standard",
	}
}

func prefsEqual(a, b Prefs) bool {
	if a.ShowEvents != b.ShowEvents ||
		a.ShowOnlyPassenger != b.ShowOnlyPassenger ||
		a.MapStyle != b.MapStyle {
		return false
	}
	if len(a.Favourites) != len(b.Favourites) {
		return false
	}
	for i := range a.Favourites {
		if a.Favourites[i] != b.Favourites[i] {
			return false
		}
	}
	return true
}

func clone(p Prefs) Prefs {
	next := p
	next.Favourites = append([]string(nil), p.Favourites...)
	return next
}
