package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/crickpick/prediction-league/handlers"
	"github.com/crickpick/prediction-league/middleware"
	"github.com/crickpick/prediction-league/models"
)

// SetupRoutes wires the full HTTP surface. The engine only ever returns
// structured results; all HTTP semantics live here and in handlers.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	predictionHandler *handlers.PredictionHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate([]byte(jwtSecret))

	router.Post("/auth/login", authHandler.Login)

	router.Route("/matches", func(r chi.Router) {
		// Публичные маршруты для просмотра матчей
		r.Get("/", matchHandler.ListMatches)
		r.Get("/{matchID}", matchHandler.GetMatch)
		r.Get("/{matchID}/votes", predictionHandler.GetVoteTally)
		r.Get("/{matchID}/feed", webSocketHandler.ServeMatchFeed)

		// Прогнозы: только для аутентифицированных пользователей
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{matchID}/predictions", predictionHandler.SubmitPrediction)
			r.Get("/{matchID}/predictions/me", predictionHandler.GetOwnPrediction)
		})

		// Переводы статусов: только для администраторов
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Post("/{matchID}/transition", matchHandler.TransitionMatch)
		})
	})

	// Лидерборд публичный; строка "мой ранг" появляется при наличии токена
	router.With(middleware.OptionalAuthenticate([]byte(jwtSecret))).
		Get("/leaderboard", leaderboardHandler.GetLeaderboard)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/users/me/stats", predictionHandler.GetOwnStats)
	})
}
