// Package httpapi is the JSON HTTP surface. Every route is declared once in
// a table together with its access policy; the router applies identity
// verification and role checks from that table.
package httpapi

import (
	"context"
	"net/http"

	"github.com/BearBump/zapshift/internal/identity"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/services/parcels"
	"github.com/BearBump/zapshift/internal/services/payments"
	"github.com/BearBump/zapshift/internal/services/riders"
	"github.com/BearBump/zapshift/internal/services/users"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Access int

const (
	Public Access = iota
	Authenticated
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

type Route struct {
	Method  string
	Pattern string
	Access  Access
	Handler http.HandlerFunc
}

type Deps struct {
	Parcels  *parcels.Service
	Payments *payments.Service
	Users    *users.Service
	Riders   *riders.Service
	Verifier identity.Verifier
	Log      zerolog.Logger

	SwaggerPath string
	CORSOrigins []string
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type API struct {
	parcels  *parcels.Service
	payments *payments.Service
	users    *users.Service
	riders   *riders.Service
	verifier identity.Verifier
	log      zerolog.Logger

	swaggerPath string
	corsOrigins []string
	ready       func(ctx context.Context) error
}

func New(d Deps) *API {
	return &API{
		parcels:     d.Parcels,
		payments:    d.Payments,
		users:       d.Users,
		riders:      d.Riders,
		verifier:    d.Verifier,
		log:         d.Log,
		swaggerPath: d.SwaggerPath,
		corsOrigins: d.CORSOrigins,
		ready:       d.Ready,
	}
}

// Routes is the full route table.
func (a *API) Routes() []Route {
	return []Route{
		{http.MethodGet, "/", Public, a.root},
		{http.MethodGet, "/healthz", Public, a.healthz},
		{http.MethodGet, "/readyz", Public, a.readyz},

		{http.MethodGet, "/my-parcels", Authenticated, a.listParcels},
		{http.MethodPost, "/parcels", Authenticated, a.createParcel},
		{http.MethodDelete, "/parcel/{id}", Authenticated, a.deleteParcel},

		{http.MethodPost, "/payment-checkout-session", Authenticated, a.createCheckoutSession},
		{http.MethodPatch, "/payment-success", Authenticated, a.confirmPayment},
		{http.MethodGet, "/payments", Authenticated, a.listPayments},
		{http.MethodPost, "/webhooks/stripe", Public, a.stripeWebhook},

		{http.MethodPost, "/user", Public, a.registerUser},
		{http.MethodGet, "/users", Admin, a.listUsers},
		{http.MethodGet, "/user/{email}/role", Authenticated, a.userRole},
		{http.MethodPatch, "/user/{id}/role", Admin, a.updateUserRole},

		{http.MethodGet, "/riders", Admin, a.listRiders},
		{http.MethodPost, "/rider", Authenticated, a.applyRider},
		{http.MethodDelete, "/rider/{id}", Admin, a.deleteRider},
		{http.MethodPatch, "/rider/{id}", Admin, a.decideRider},
	}
}

// Handler builds the router. reg receives the HTTP metrics and backs
// /metrics; nil uses a fresh registry.
func (a *API) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := newMetrics(reg)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(a.log))
	r.Use(chimw.Recoverer)
	r.Use(m.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "route not found", Status: http.StatusNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed", Status: http.StatusMethodNotAllowed})
	})

	for _, rt := range a.Routes() {
		r.With(a.policy(rt.Access)...).Method(rt.Method, rt.Pattern, rt.Handler)
	}

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if a.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, a.swaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}
	return r
}

func (a *API) policy(acc Access) []func(http.Handler) http.Handler {
	switch acc {
	case Authenticated:
		return []func(http.Handler) http.Handler{a.authenticate}
	case Admin:
		return []func(http.Handler) http.Handler{a.authenticate, a.requireRole(models.RoleAdmin)}
	default:
		return nil
	}
}

func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("zap is shifting!!"))
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("not ready")
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
