package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xelth-com/eckdesk/internal/middleware"
	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
	"github.com/xelth-com/eckdesk/internal/services/printer"
	"github.com/xelth-com/eckdesk/internal/websocket"
)

// getReport returns statistics for a timeframe, plus the detail list when an
// administrator selects a category
func (r *Router) getReport(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	tf, f, ok := reportQuery(w, req, reporting.FilterNone)
	if !ok {
		return
	}
	if f != reporting.FilterNone && !actor.Admin {
		respondServiceError(w, reporting.ErrNotPrivileged)
		return
	}
	respondJSON(w, http.StatusOK, r.reports.Report(tf, f, actor.Admin))
}

// exportReportCSV downloads the detail list of a category, all requests by default
func (r *Router) exportReportCSV(w http.ResponseWriter, req *http.Request) {
	tf, f, ok := reportQuery(w, req, reporting.FilterTotal)
	if !ok {
		return
	}
	rep := r.reports.Report(tf, f, true)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"requests_%s_%s.csv\"", tf, f))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "date", "title", "requester", "requesterEmail", "status", "priority", "technician", "site", "attachments"})
	for _, row := range rep.Requests {
		date := ""
		if d, ok := reporting.UsableDate(row.Date); ok {
			date = d.UTC().Format(time.RFC3339)
		}
		cw.Write([]string{
			row.ID,
			date,
			row.Title,
			row.Requester,
			row.RequesterEmail,
			row.Status,
			models.PriorityLevel(row.Priority),
			row.Technician,
			row.Site,
			strconv.Itoa(len(row.Attachments)),
		})
	}
	cw.Flush()
}

// exportReportPDF renders the report; the detail list is included when a filter is given
func (r *Router) exportReportPDF(w http.ResponseWriter, req *http.Request) {
	tf, f, ok := reportQuery(w, req, reporting.FilterNone)
	if !ok {
		return
	}

	pdf, err := printer.GenerateReportPDF(r.reports.Report(tf, f, true))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePDF(w, fmt.Sprintf("report_%s.pdf", tf), pdf)
}

func reportQuery(w http.ResponseWriter, req *http.Request, defaultFilter reporting.Filter) (reporting.Timeframe, reporting.Filter, bool) {
	q := req.URL.Query()
	tf, err := reporting.ParseTimeframe(q.Get("timeframe"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	f, err := reporting.ParseFilter(q.Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	if f == reporting.FilterNone {
		f = defaultFilter
	}
	return tf, f, true
}

// serveReports opens a live report session for the caller
func (r *Router) serveReports(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	agg := reporting.NewAggregator(r.cfg.Reports.CacheSize, r.cfg.Reports.CacheTTL)
	websocket.ServeReports(r.hub, r.feed, agg, websocket.Session{
		UserID:     actor.UID,
		Privileged: actor.Admin,
	}, w, req)
}
