package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptclash/arena/handlers"
	"github.com/promptclash/arena/middleware"
)

type Config struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	cfg Config,
	tournamentHandler *handlers.TournamentHandler,
	wsHandler *handlers.WebSocketHandler,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.ResolveRole(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/tournament", func(r chi.Router) {
		r.Post("/rounds/initialize", tournamentHandler.InitializeRoundsHandler)
		r.Get("/rounds", tournamentHandler.ListRoundsHandler)

		r.Route("/rounds/{roundNumber}", func(r chi.Router) {
			r.Get("/matches", tournamentHandler.ListRoundMatchesHandler)
			r.Post("/generate", tournamentHandler.GenerateMatchupsHandler)
			r.Delete("/clear", tournamentHandler.ClearMatchupsHandler)
			r.Post("/start", tournamentHandler.StartRoundHandler)
		})

		r.Get("/team-progress/{teamID}", tournamentHandler.TeamProgressHandler)
		r.Get("/leaderboard", tournamentHandler.LeaderboardHandler)
	})

	router.Get("/ws/events/{eventID}", wsHandler.ServeWs)

	return router
}
