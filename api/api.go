// Package api provides HTTP handlers for the Sentinel authorization and
// role application engine.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/workflow"
)

// API wires all Sentinel HTTP handlers together.
type API struct {
	eng    *sentinel.Engine
	apps   *workflow.Service
	router forge.Router
}

// New creates an API from the engine, the application workflow service,
// and a Forge router.
func New(eng *sentinel.Engine, apps *workflow.Service, router forge.Router) *API {
	return &API{eng: eng, apps: apps, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("sentinel: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerCheckRoutes,
		a.registerApplicationRoutes,
		a.registerRoleRoutes,
		a.registerAuditRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
