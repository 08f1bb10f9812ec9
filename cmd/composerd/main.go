package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/mind-engage/testcraft/internal/api/http"
	auth "github.com/mind-engage/testcraft/internal/auth/middleware"
	"github.com/mind-engage/testcraft/internal/backend"
	"github.com/mind-engage/testcraft/internal/composer"
	"github.com/mind-engage/testcraft/internal/config"
	"github.com/mind-engage/testcraft/internal/db"
	"github.com/mind-engage/testcraft/internal/draft"
	rbac "github.com/mind-engage/testcraft/internal/rbac"
)

func main() {
	_ = godotenv.Load() // optional .env for local dev
	cfg := config.FromEnv()

	// --- DB (draft store) ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	drafts := draft.NewSQLStore(dbh)

	// --- Course platform client ---
	platform := backend.NewHTTPClient(cfg.BackendBaseURL, cfg.BackendToken)

	// --- Sessions ---
	sessions := composer.NewManager(platform, drafts, nil)
	sessions.AutosaveDebounce = cfg.AutosaveDebounce
	sessions.AutosaveHeartbeat = cfg.AutosaveHeartbeat
	defer sessions.Shutdown()

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.LoginOptions{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
	}))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("course:list")).
			Get("/courses", api.ListCoursesHandler(platform))

		pr.With(rbac.Require("session:open")).
			Post("/sessions", api.OpenSessionHandler(sessions))

		pr.Route("/sessions/{courseID}", func(sr chi.Router) {
			sr.With(rbac.Require("session:open")).
				Delete("/", api.CloseSessionHandler(sessions))

			sr.Group(func(er chi.Router) {
				er.Use(rbac.Require("session:edit"))

				er.Get("/candidates", api.CandidatesHandler(sessions))
				er.Get("/selection", api.SelectionHandler(sessions))
				er.Post("/selection/toggle", api.ToggleHandler(sessions))
				er.Post("/selection/{op}", api.BulkSelectHandler(sessions))
				er.Put("/filter", api.SetFilterHandler(sessions))
				er.Put("/page-size", api.SetPageSizeHandler(sessions))
				er.Put("/config", api.SetConfigHandler(sessions))
				er.Put("/overrides/{questionID}", api.SetOverrideHandler(sessions))
				er.Delete("/overrides/{questionID}", api.PurgeOverrideHandler(sessions))
				er.Get("/distribution", api.DistributionHandler(sessions))
				er.Post("/shuffle/questions", api.ShuffleQuestionsHandler(sessions))
				er.Post("/shuffle/answers/{questionID}", api.ShuffleAnswersHandler(sessions))
				er.Get("/draft", api.DraftStatusHandler(sessions))
				er.Post("/draft/save", api.SaveDraftHandler(sessions))
				er.Post("/detail", api.DetailViewHandler(sessions))
			})

			sr.With(rbac.Require("draft:discard")).
				Delete("/draft", api.DiscardDraftHandler(sessions))
			sr.With(rbac.Require("test:commit")).
				Post("/commit", api.CommitHandler(sessions))
		})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Printf("composerd listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
