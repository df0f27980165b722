package reporting

import (
	"time"

	"github.com/xelth-com/eckdesk/internal/models"
)

// Card is one category tile of the reporting screen
type Card struct {
	Filter  Filter `json:"filter"`
	Title   string `json:"title"`
	Count   int    `json:"count"`
	Active  bool   `json:"active"`
	Enabled bool   `json:"enabled"`
}

// Report is everything the reporting screen renders for one state
type Report struct {
	Timeframe   Timeframe        `json:"timeframe"`
	Filter      Filter           `json:"filter"`
	Stats       Stats            `json:"stats"`
	Cards       []Card           `json:"cards"`
	ListTitle   string           `json:"listTitle,omitempty"`
	Requests    []models.Request `json:"requests"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

var cardTitles = map[Filter]string{
	FilterTotal:        "Total Requests",
	FilterOpen:         "Open",
	FilterClosed:       "Closed",
	FilterResolved:     "Resolved",
	FilterUnassigned:   "Unassigned",
	FilterHighPriority: "High Priority",
}

var listTitles = map[Filter]string{
	FilterTotal:        "All Requests",
	FilterOpen:         "Open Requests",
	FilterClosed:       "Closed Requests",
	FilterResolved:     "Resolved Requests",
	FilterUnassigned:   "Unassigned Requests",
	FilterHighPriority: "High Priority Requests",
}

// BuildCards returns the six category cards. Counts are always visible;
// the cards only accept selection from privileged callers.
func BuildCards(s Stats, active Filter, privileged bool) []Card {
	cards := make([]Card, 0, len(Categories))
	for _, f := range Categories {
		cards = append(cards, Card{
			Filter:  f,
			Title:   cardTitles[f],
			Count:   s.Count(f),
			Active:  f == active,
			Enabled: privileged,
		})
	}
	return cards
}

// ListTitle returns the heading of the detail list, empty for FilterNone
func ListTitle(f Filter) string {
	return listTitles[f]
}
