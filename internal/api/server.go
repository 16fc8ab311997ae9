package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/limbo/serenity/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	mx                *chi.Mux
	userService       service.UserServiceI
	completionService service.CompletionServiceI
	radarService      service.RadarServiceI
	insightsService   service.InsightsServiceI
	aggregation       AggregationRunnerI
	jwtService        JWTServiceI
	ipRequestsPerMin  int
}

type ServicesList struct {
	UserService       service.UserServiceI
	CompletionService service.CompletionServiceI
	RadarService      service.RadarServiceI
	InsightsService   service.InsightsServiceI
	Aggregation       AggregationRunnerI
	JwtService        JWTServiceI
	// Requests allowed per client IP per minute; zero falls back to 60
	IPRequestsPerMin int
}

func New(servicesOptions *ServicesList) *Server {
	perMin := servicesOptions.IPRequestsPerMin
	if perMin <= 0 {
		perMin = 60
	}
	return &Server{
		mx:                chi.NewMux(),
		userService:       servicesOptions.UserService,
		completionService: servicesOptions.CompletionService,
		radarService:      servicesOptions.RadarService,
		insightsService:   servicesOptions.InsightsService,
		aggregation:       servicesOptions.Aggregation,
		jwtService:        servicesOptions.JwtService,
		ipRequestsPerMin:  perMin,
	}
}

func (s *Server) registerRoutes() {
	s.mx.Use(s.RequestIDMiddleware, s.SettingUpLoggerMiddleware, s.RateLimitMiddleware)
	s.mx.Handle("/metrics", promhttp.Handler())
	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware, s.LoggerExtensionMiddleware)
			r.Post("/exercises/{id}/complete", s.CompleteExercise)
			r.Get("/progress/radar", s.GetCategoryDistribution)
			r.Get("/insights", s.GetInsights)
			r.Post("/moods", s.CreateMoodEntry)
			r.Get("/users/me/stats", s.GetMyStats)
		})
		r.Post("/internal/aggregation/run", s.RunAggregation)
	})
}

func (s *Server) Run(addr string) error {
	s.registerRoutes()
	return http.ListenAndServe(addr, s.mx)
}

// Handler exposes the routed mux, used by tests.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.mx
}
