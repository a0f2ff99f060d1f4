// cmd/api/handlers_analytics.go
// Handlers for the borrowing summary and its CSV exports.
package main

import (
	"context"
	"net/http"

	"github.com/aoideee/library-api/internal/analytics"
)

// aggregateHandler handles GET /v1/analytics?start=YYYY-MM-DD&end=YYYY-MM-DD.
// Missing bounds default to 1970-01-01 and today.
func (app *applicationDependencies) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	summary, err := app.analytics.Aggregate(r.Context(), app.readString(qs, "start", ""), app.readString(qs, "end", ""))
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"analytics": summary}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// exportHandler handles GET /v1/analytics/export and sends the period as CSV.
func (app *applicationDependencies) exportHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	table, err := app.analytics.Export(r.Context(), app.readString(qs, "start", ""), app.readString(qs, "end", ""))
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}
	app.sendTable(w, r, table)
}

// exportLastMonthHandler handles GET /v1/analytics/export/lastmonth.
func (app *applicationDependencies) exportLastMonthHandler(w http.ResponseWriter, r *http.Request) {
	app.exportFixed(w, r, app.analytics.ExportLastMonthBorrowings)
}

// exportLastMonthOverdueHandler handles GET /v1/analytics/export/lastmonth/overdue.
func (app *applicationDependencies) exportLastMonthOverdueHandler(w http.ResponseWriter, r *http.Request) {
	app.exportFixed(w, r, app.analytics.ExportLastMonthOverdue)
}

func (app *applicationDependencies) exportFixed(w http.ResponseWriter, r *http.Request, export func(context.Context) (*analytics.Table, error)) {
	table, err := export(r.Context())
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}
	app.sendTable(w, r, table)
}

// sendTable writes table as CSV. Once the header is out a write failure can
// only be logged.
func (app *applicationDependencies) sendTable(w http.ResponseWriter, r *http.Request, table *analytics.Table) {
	if err := app.writeCSV(w, http.StatusOK, table); err != nil {
		app.logError(r, err)
	}
}
