// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/aoideee/library-api/internal/metrics"
)

// routes registers all HTTP endpoints and returns the router wrapped in the
// middleware chain.
//
// Middleware chain (outermost to innermost):
//
//	recoverPanic → logRequest → rateLimit → router
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	// Users
	router.HandlerFunc(http.MethodPost, "/v1/users", app.registerUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users", app.listUsersHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id", app.showUserHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/users/:id", app.updateUserHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/users/:id", app.deleteUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id/checkouts", app.listUserCheckoutsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id/books", app.listUserBooksHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/:id/overdue", app.listUserOverdueHandler)

	// Books
	router.HandlerFunc(http.MethodPost, "/v1/books", app.createBookHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books", app.listBooksHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/books", app.deleteAllBooksHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id", app.showBookHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/books/:id", app.updateBookHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/books/:id", app.deleteBookHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id/checkouts", app.listBookCheckoutsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/search/books", app.searchBooksHandler)

	// Lending
	router.HandlerFunc(http.MethodPost, "/v1/checkouts", app.createCheckoutHandler)
	router.HandlerFunc(http.MethodGet, "/v1/checkouts", app.listCheckoutsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/checkouts/:id", app.showCheckoutHandler)
	router.HandlerFunc(http.MethodPost, "/v1/checkouts/:id/return", app.returnCheckoutHandler)
	router.HandlerFunc(http.MethodPost, "/v1/returns", app.returnBookHandler)
	router.HandlerFunc(http.MethodGet, "/v1/overdue", app.listOverdueHandler)

	// Analytics
	router.HandlerFunc(http.MethodGet, "/v1/analytics", app.aggregateHandler)
	router.HandlerFunc(http.MethodGet, "/v1/analytics/export", app.exportHandler)
	router.HandlerFunc(http.MethodGet, "/v1/analytics/export/lastmonth", app.exportLastMonthHandler)
	router.HandlerFunc(http.MethodGet, "/v1/analytics/export/lastmonth/overdue", app.exportLastMonthOverdueHandler)

	router.Handler(http.MethodGet, "/metrics", metrics.Handler(app.gatherer))

	return app.recoverPanic(app.logRequest(app.rateLimit(router)))
}
