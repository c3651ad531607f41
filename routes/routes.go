package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/chess-arena/handlers"
	"github.com/Dosada05/chess-arena/middleware"
	"github.com/Dosada05/chess-arena/services"
)

func SetupRoutes(
	router *chi.Mux,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	roomHandler *handlers.RoomHandler,
	tournamentHandler *handlers.TournamentHandler,
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

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/tournaments", tournamentHandler.List)
		r.Get("/leaderboard", tournamentHandler.Leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authService))

			r.Post("/rooms", roomHandler.Create)
			r.Post("/rooms/join", roomHandler.Join)
		})
	})

	// Socket auth rides the query string, not the Authorization header.
	router.Get("/ws", webSocketHandler.ServeWs)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
