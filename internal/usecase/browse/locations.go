package browse

import "strings"

// AllLocations is the picker's nationwide choice; as a filter it matches
// every location.
const AllLocations = "All in India"

type LocationOptions struct {
	All    string   `json:"all"`
	States []string `json:"states"`
}

// Locations serves the location picker from a fixed state list.
type Locations struct {
	states []string
}

func NewLocations(states []string) *Locations {
	return &Locations{states: append([]string(nil), states...)}
}

// Search keeps the configured order; a blank query returns every state.
func (l *Locations) Search(q string) LocationOptions {
	q = strings.TrimSpace(q)
	out := LocationOptions{All: AllLocations, States: make([]string, 0, len(l.states))}
	for _, s := range l.states {
		if q == "" || containsFold(s, q) {
			out.States = append(out.States, s)
		}
	}
	return out
}
