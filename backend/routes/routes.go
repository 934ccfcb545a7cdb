package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/cache"
	"academy/backend/config"
	"academy/backend/controllers"
	"academy/backend/enrollment"
	"academy/backend/events"
	"academy/backend/identity"
	"academy/backend/middleware"
	"academy/backend/notify"
	"academy/backend/purchase"
	"academy/backend/repository"
	"academy/backend/storage"
)

// Services are the collaborators the handlers are built from.
type Services struct {
	Store      *repository.Store
	Jobs       *repository.JobQueue
	Ledger     *enrollment.Ledger
	Purchases  *purchase.Service
	Dispatcher *notify.Dispatcher
	Webhooks   controllers.WebhookParser
	Deduper    cache.Deduper
	Lockout    cache.LockoutStore
	Events     events.Publisher
	Storage    storage.ObjectStore
	Logger     *slog.Logger
}

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, svc Services) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// The webhook authenticates by signature, not by token.
	paymentsController := controllers.NewPaymentsController(db, svc.Purchases, svc.Webhooks, svc.Deduper, svc.Logger)
	app.Post("/api/payments/stripe/webhook", paymentsController.StripeWebhook)

	authenticate := middleware.Authenticate(cfg, svc.Store)
	api := app.Group("/api", authenticate)
	requireAuth := middleware.RequireAuth()
	adminOnly := middleware.RequireRole(access.RoleAdmin)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg, svc.Store, svc.Dispatcher, svc.Lockout, svc.Events, svc.Logger)
	api.Post("/auth/register", authController.Register)
	api.Post("/auth/login", authController.Login)
	api.Get("/auth/verify", authController.VerifyEmail)
	api.Post("/auth/forgot-password", authController.ForgotPassword)
	api.Post("/auth/reset-password", authController.ResetPassword)

	// User routes
	userController := controllers.NewUserController(db, cfg, svc.Store)
	api.Get("/users/me", requireAuth, userController.Me)
	api.Get("/users", requireAuth, userController.List)
	api.Patch("/users/:id", requireAuth, userController.Update)
	api.Delete("/users/:id", requireAuth, userController.Delete)

	// Courses routes
	coursesController := controllers.NewCoursesController(db, cfg, svc.Store, identity.NewAssigner(), svc.Ledger)
	api.Get("/courses", coursesController.List)
	api.Get("/courses/:idOrSlug", coursesController.Get)
	api.Post("/courses", coursesController.Create)
	api.Put("/courses/:id", coursesController.Update)
	api.Delete("/courses/:id", coursesController.Delete)
	api.Post("/courses/:id/enroll", requireAuth, coursesController.Enroll)

	tagsController := controllers.NewTagsController(db, svc.Store)
	api.Get("/tags", tagsController.List)
	api.Post("/tags", tagsController.Create)
	api.Put("/tags/:id", tagsController.Update)
	api.Delete("/tags/:id", tagsController.Delete)

	mediaController := controllers.NewMediaController(db, cfg, svc.Storage)
	app.Get("/media/:key", authenticate, mediaController.Serve)
	api.Get("/media", mediaController.List)
	api.Get("/media/:id", mediaController.Get)
	api.Post("/media", mediaController.Upload)
	api.Patch("/media/:id", mediaController.Update)
	api.Delete("/media/:id", mediaController.Delete)

	// Enrollment routes
	enrollmentsController := controllers.NewEnrollmentsController(db, svc.Store, svc.Ledger)
	enrollments := api.Group("/enrollments", requireAuth)
	enrollments.Get("/", enrollmentsController.List)
	enrollments.Get("/:id", enrollmentsController.Get)
	enrollments.Post("/", enrollmentsController.Create)
	enrollments.Delete("/:id", enrollmentsController.Delete)
	enrollments.Post("/:id/watch-time", enrollmentsController.RecordWatchTime)
	enrollments.Post("/:id/lessons/:lessonId/complete", enrollmentsController.CompleteLesson)
	enrollments.Post("/:id/sections/:sectionId/complete", enrollmentsController.CompleteSection)

	// Purchase routes
	api.Get("/purchases", requireAuth, paymentsController.List)
	api.Get("/purchases/:id", requireAuth, paymentsController.Get)
	api.Post("/payments/checkout", requireAuth, paymentsController.Checkout)

	// Admin routes
	analyticsController := controllers.NewAnalyticsController(db, svc.Store)
	jobsController := controllers.NewJobsController(svc.Jobs)
	admin := api.Group("/admin", adminOnly)
	admin.Post("/purchases/:id/transition", paymentsController.Transition)
	admin.Get("/courses/:id/analytics", analyticsController.CourseAnalytics)
	admin.Get("/jobs", jobsController.List)
}
