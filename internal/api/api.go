package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"vigia.dev/patroltrack/internal/hub"
	"vigia.dev/patroltrack/internal/store"
	"vigia.dev/patroltrack/internal/util"
)

type ApiConfig struct {
	ListenAddr      string
	JwtSecret       string
	TokenTTL        time.Duration
	StalenessWindow time.Duration
	RouteLookback   time.Duration
	CorsOrigins     []string
}

type Api struct {
	r      chi.Router
	s      *http.Server
	config *ApiConfig
	log    log.Logger
	vld    *validator.Validate
	ids    store.IdentityStore
	locs   store.LocationStore
	hub    *hub.Hub
}

func NewApi(ids store.IdentityStore, locs store.LocationStore, h *hub.Hub, config *ApiConfig) *Api {
	api := &Api{config: config}
	api.ids = ids
	api.locs = locs
	api.hub = h
	api.log = log.DefaultLogger
	api.log.Context = log.NewContext(nil).Str("module", "api-server").Value()
	api.vld = validator.New()
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", api.Banner)
	r.Post("/auth/login", api.Login)

	r.Group(func(r chi.Router) {
		r.Use(api.verifyToken)
		r.Post("/auth/logout", api.Logout)
		r.Get("/auth/verify", api.Verify)
		r.Post("/locations", api.SaveLocation)

		r.Group(func(r chi.Router) {
			r.Use(api.requireSupervisor)
			r.Get("/locations/active", api.ActiveUnits)
			r.Get("/locations/route/{principalId}", api.Route)
			r.Get("/locations/stats/{principalId}", api.Stats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.JsonError(w, http.StatusNotFound, "route not found", "")
	})

	api.r = r
	s := &http.Server{
		Addr:           api.config.ListenAddr,
		Handler:        api.r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	api.s = s
	return api
}

// Router exposes the handler tree for tests and embedding.
func (api *Api) Router() http.Handler {
	return api.r
}

func (api *Api) Run() {
	api.log.Info().Msgf("starting api-server on : %s", api.s.Addr)
	err := api.s.ListenAndServe()
	if err != nil {
		api.log.Error().Err(err).Msg("")
		panic(err)
	}
}

type bannerResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Connected int               `json:"connected_clients"`
	Endpoints map[string]string `json:"endpoints"`
}

func (api *Api) Banner(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, bannerResponse{
		Message:   "patrol tracking server up",
		Version:   "1.0.0",
		Connected: api.hub.Connected(),
		Endpoints: map[string]string{
			"auth":      "/auth",
			"locations": "/locations",
		},
	})
}
