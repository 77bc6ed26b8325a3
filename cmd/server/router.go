package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/taskboard-api/internal/api"
	apimiddleware "github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/platform/metrics"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)
	r.Use(metrics.Middleware)

	authHandler := api.NewAuthHandler(app.userStore, app.jwtService, app.passwordVerifier, app.logger)
	userHandler := api.NewUserHandler(app.userStore, app.logger)
	taskHandler := api.NewTaskHandler(
		app.taskStore, app.reportStore, app.blobStore, app.jobRunner, app.mailer, app.logger)
	attachmentHandler := api.NewAttachmentHandler(
		app.attachmentStore, app.taskStore, app.blobStore, app.logger)
	commentHandler := api.NewCommentHandler(app.commentStore, app.taskStore, app.logger)
	reportHandler := api.NewReportHandler(app.reportStore, app.blobStore, app.logger)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.jwtService, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)
			r.Get("/users", userHandler.List)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Post("/bulk-update", taskHandler.BulkUpdate)
				r.Post("/generate-report", taskHandler.GenerateReport)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", taskHandler.Show)
					r.Put("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)

					r.Route("/attachments", func(r chi.Router) {
						r.Get("/", attachmentHandler.List)
						r.Post("/", attachmentHandler.Upload)
					})

					r.Route("/comments", func(r chi.Router) {
						r.Get("/", commentHandler.List)
						r.Post("/", commentHandler.Create)
					})
				})
			})

			r.Route("/attachments/{id}", func(r chi.Router) {
				r.Get("/download", attachmentHandler.Download)
				r.Delete("/", attachmentHandler.Delete)
			})

			r.Route("/comments/{id}", func(r chi.Router) {
				r.Put("/", commentHandler.Update)
				r.Delete("/", commentHandler.Delete)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", reportHandler.List)
				r.Get("/{id}", reportHandler.Show)
				r.Get("/{id}/download", reportHandler.Download)
				r.Delete("/{id}", reportHandler.Delete)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
