// cmd/api/handlers_checkouts.go
// Handlers for checkouts, returns and the overdue list.
package main

import (
	"net/http"

	"github.com/aoideee/library-api/internal/data"
)

// createCheckoutHandler handles POST /v1/checkouts with {"user_id", "book_id"}.
// One copy of the book is taken off the shelf and the due date is set.
func (app *applicationDependencies) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var input data.CheckoutInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	checkout, err := app.lending.Checkout(r.Context(), input)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"checkout": checkout}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listCheckoutsHandler handles GET /v1/checkouts.
func (app *applicationDependencies) listCheckoutsHandler(w http.ResponseWriter, r *http.Request) {
	checkouts, err := app.lending.List(r.Context())
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkouts": checkouts}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showCheckoutHandler handles GET /v1/checkouts/:id.
func (app *applicationDependencies) showCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	checkout, err := app.lending.Get(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkout": checkout}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// returnCheckoutHandler handles POST /v1/checkouts/:id/return.
// Returning a checkout twice is a 409.
func (app *applicationDependencies) returnCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	checkout, err := app.lending.ReturnByID(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkout": checkout}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// returnBookHandler handles POST /v1/returns with {"user_id", "book_id"} and
// closes that user's open checkout of the book.
func (app *applicationDependencies) returnBookHandler(w http.ResponseWriter, r *http.Request) {
	var input data.CheckoutInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	checkout, err := app.lending.ReturnByUserAndBook(r.Context(), input)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkout": checkout}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listOverdueHandler handles GET /v1/overdue.
func (app *applicationDependencies) listOverdueHandler(w http.ResponseWriter, r *http.Request) {
	checkouts, err := app.lending.ListOverdue(r.Context())
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkouts": checkouts}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
