package handlers

import (
	"net/http"

	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
)

// getOptions lists the values the request form and the report screen offer
func (r *Router) getOptions(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"statuses":    models.Statuses,
		"priorities":  models.Priorities,
		"sites":       models.Sites,
		"technicians": models.Technicians,
		"timeframes":  []reporting.Timeframe{reporting.Weekly, reporting.Monthly},
		"categories":  reporting.Categories,
	})
}
