package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/darts-tournament-system/docs" // registers the OpenAPI document
	"github.com/Dosada05/darts-tournament-system/handlers"
	"github.com/Dosada05/darts-tournament-system/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	League     *handlers.LeagueHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// PINs verifies the scorer PIN sent by tablets without a user session.
	PINs   middleware.PINVerifier
	Logger *slog.Logger
}

func SetupRoutes(router *chi.Mux, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.ScorerPINHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	staff := []middleware.ClubRole{middleware.RoleAdmin, middleware.RoleModerator}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret, opts.Logger))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListHandler)
			r.With(middleware.RequireUser).Post("/", h.Tournament.CreateHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", h.Tournament.GetByIDHandler)
				r.Get("/overview", h.Tournament.OverviewHandler)
				r.Get("/matches", h.Match.ListHandler)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireUser)
					r.Post("/players", h.Tournament.ApplyHandler)
					r.Delete("/players/{playerID}", h.Tournament.WithdrawHandler)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireClubRole(h.Tournament.Scope, handlers.RespondError, staff...))
					r.Post("/players/{playerID}/check-in", h.Tournament.CheckInHandler)
					r.Post("/waiting-list/promote", h.Tournament.PromoteWaitingListHandler)
					r.Post("/groups", h.Tournament.GenerateGroupsHandler)
					r.Post("/groups/finish", h.Tournament.FinishGroupStageHandler)
					r.Post("/knockout", h.Tournament.GenerateKnockoutHandler)
					r.Put("/knockout/manual", h.Tournament.SubmitManualBracketHandler)
					r.Delete("/knockout", h.Tournament.CancelKnockoutHandler)
					r.Post("/knockout/rounds/{round}/advance", h.Tournament.AdvanceKnockoutHandler)
					r.Post("/cancel", h.Tournament.CancelHandler)
				})
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Match.GetByIDHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScorer(h.Match.Scope, opts.PINs, handlers.RespondError))
				r.Post("/start", h.Match.StartHandler)
				r.Post("/legs", h.Match.FinishLegHandler)
				r.Delete("/legs/last", h.Match.UndoLegHandler)
				r.Patch("/", h.Match.UpdateSettingsHandler)
			})
		})

		r.Route("/leagues", func(r chi.Router) {
			r.Get("/", h.League.ListHandler)
			r.With(middleware.RequireUser).Post("/", h.League.CreateHandler)

			r.Route("/{leagueID}", func(r chi.Router) {
				r.Get("/", h.League.GetByIDHandler)
				r.Get("/standings", h.League.StandingsHandler)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireClubRole(h.League.Scope, handlers.RespondError, staff...))
					r.Post("/tournaments/{tournamentID}", h.League.AttachTournamentHandler)
					r.Post("/tournaments/{tournamentID}/apply", h.League.ApplyResultsHandler)
					r.Post("/adjustments", h.League.AddAdjustmentHandler)
					r.Delete("/players/{playerID}/adjustments/{index}", h.League.UndoAdjustmentHandler)
				})
			})
		})
	})
}
