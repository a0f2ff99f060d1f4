// cmd/api/handlers_users.go
// Handlers for the users resource.
package main

import (
	"context"
	"net/http"

	"github.com/aoideee/library-api/internal/data"
)

// registerUserHandler handles POST /v1/users.
func (app *applicationDependencies) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input data.RegisterUserInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.users.Register(r.Context(), input)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listUsersHandler handles GET /v1/users.
func (app *applicationDependencies) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := app.users.List(r.Context())
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"users": users}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showUserHandler handles GET /v1/users/:id.
func (app *applicationDependencies) showUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.users.Get(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateUserHandler handles PATCH /v1/users/:id.
func (app *applicationDependencies) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input data.UpdateUserInput
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.users.Update(r.Context(), id, input)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteUserHandler handles DELETE /v1/users/:id. The user's checkouts go with them.
func (app *applicationDependencies) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.users.Delete(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "user successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listUserCheckoutsHandler handles GET /v1/users/:id/checkouts.
func (app *applicationDependencies) listUserCheckoutsHandler(w http.ResponseWriter, r *http.Request) {
	app.userCheckouts(w, r, app.users.ListCheckouts)
}

// listUserBooksHandler handles GET /v1/users/:id/books: checkouts not yet returned.
func (app *applicationDependencies) listUserBooksHandler(w http.ResponseWriter, r *http.Request) {
	app.userCheckouts(w, r, app.users.ListOpenBooks)
}

// listUserOverdueHandler handles GET /v1/users/:id/overdue.
func (app *applicationDependencies) listUserOverdueHandler(w http.ResponseWriter, r *http.Request) {
	app.userCheckouts(w, r, app.users.ListOverdue)
}

func (app *applicationDependencies) userCheckouts(w http.ResponseWriter, r *http.Request, list func(context.Context, int64) ([]*data.CheckoutDetail, error)) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	checkouts, err := list(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"checkouts": checkouts}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
