package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"sandboxapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, db *sql.DB, jobSvc service.JobService, transformSvc service.TransformService) {
	// Health endpoints
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	// Synchronous upload-then-transform surface
	app.Post("/upload/", UploadFile(transformSvc))
	app.Post("/execute/", ExecuteFile(transformSvc))

	// Job-based processing surface
	app.Post("/jobs", CreateJob(jobSvc))
	app.Get("/jobs", ListJobs(jobSvc))
	app.Get("/jobs/:id", GetJob(jobSvc))
	app.Post("/jobs/:id/code", SubmitCode(jobSvc))
	app.Get("/jobs/:id/results", JobResults(jobSvc))
	app.Delete("/jobs/:id", DeleteJob(jobSvc))

	app.Get("/template", CodeTemplate())
}
