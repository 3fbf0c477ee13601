package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/booking"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/rating"
)

type Deps struct {
	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Hub      *realtime.Hub
	Notifier *realtime.Notifier
	Store    *caregiver.Store
	Ratings  *rating.RatingService
	Bookings *booking.BookingService

	// auth routes get their own limiters; tests pass nil to skip them
	LoginLimiter    fiber.Handler
	RegisterLimiter fiber.Handler
}

func orNext(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}

func NewApp(log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(log),
		BodyLimit:    12 * 1024 * 1024,
	})
}

// Register mounts every route of the API on app.
func Register(app *fiber.App, d Deps) {
	cfg := d.Cfg

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))
	app.Static("/uploads", cfg.UploadDir)

	authH := &AuthHandler{
		DB:           d.DB,
		JWTSecret:    cfg.JWTSecret,
		Expires:      cfg.JWTExpiresMin,
		SecureCookie: cfg.AppEnv == "production",
		Log:          d.Log,
	}
	googleH := &GoogleOAuthHandler{
		Auth:            authH,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: strings.TrimRight(cfg.FrontendBaseURL, "/"),
	}
	uploader := &Uploader{Dir: cfg.UploadDir, PublicBaseURL: cfg.AppBaseURL}
	caregiverH := &CaregiverHandler{DB: d.DB, Store: d.Store, Upload: uploader, Auth: authH, Log: d.Log}
	dashboardH := &CaregiverDashboardHandler{DB: d.DB, Log: d.Log}
	directoryH := &DirectoryHandler{Store: d.Store, Ratings: d.Ratings, IDKey: cfg.IDEncryptKey, Log: d.Log}
	adminH := &AdminHandler{DB: d.DB, Store: d.Store, Notifier: d.Notifier, Log: d.Log}
	bookingH := &BookingHandler{Svc: d.Bookings, Notifier: d.Notifier, IDKey: cfg.IDEncryptKey, Log: d.Log}
	reviewH := &ReviewHandler{Ratings: d.Ratings, Log: d.Log}
	chatH := &ChatHandler{DB: d.DB, Notifier: d.Notifier, IDKey: cfg.IDEncryptKey, Log: d.Log}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := app.Group("/api")

	// public
	api.Post("/auth/register", orNext(d.RegisterLimiter), authH.Register)
	api.Post("/auth/login", orNext(d.LoginLimiter), authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Post("/caregivers/register", orNext(d.RegisterLimiter), caregiverH.Register)

	api.Get("/service-types", directoryH.ServiceTypes)
	api.Get("/caregivers", directoryH.Search)
	api.Get("/caregivers/:id", directoryH.Detail)
	api.Get("/caregivers/:id/reviews", directoryH.Reviews)

	jwtAuth := middleware.JWTFromCookie(cfg.JWTSecret)
	protected := api.Group("/", jwtAuth, middleware.AttachJWTLocals())

	protected.Get("/me", authH.Me)

	cg := protected.Group("/caregiver", middleware.RequireRoles(string(models.RoleCaregiver)))
	cg.Get("/profile", caregiverH.GetProfile)
	cg.Patch("/profile", caregiverH.UpdateProfile)
	cg.Post("/profile/photo", caregiverH.UploadPhoto)
	cg.Post("/profile/documents", caregiverH.ReplaceDocuments)
	cg.Get("/dashboard/stats", dashboardH.Stats)

	bookings := protected.Group("/bookings")
	bookings.Post("/", middleware.RequireRoles(string(models.RoleClient)), bookingH.Create)
	bookings.Get("/", bookingH.ListMine)
	bookings.Get("/:id", bookingH.Get)
	bookings.Patch("/:id/status", bookingH.UpdateStatus)
	bookings.Post("/:id/review", middleware.RequireRoles(string(models.RoleClient)), reviewH.Create)

	chat := protected.Group("/chat")
	chat.Post("/conversations", chatH.CreateOrGetConversation)
	chat.Get("/conversations", chatH.GetConversations)
	chat.Get("/unread", chatH.GetUnreadTotal)
	chat.Get("/conversations/:id/messages", chatH.GetMessages)
	chat.Post("/conversations/:id/messages", chatH.SendMessage)
	chat.Patch("/conversations/:id/read", chatH.MarkAsRead)

	admin := protected.Group("/admin", middleware.RequireRoles(string(models.RoleAdmin)))
	admin.Get("/caregivers/pending", adminH.ListPending)
	admin.Post("/caregivers/:id/approve", adminH.Approve)
	admin.Post("/caregivers/:id/reject", adminH.Reject)
	admin.Delete("/caregivers/:id", adminH.Remove)
	admin.Get("/caregivers/:id/decisions", adminH.Decisions)
	admin.Get("/users", adminH.ListUsers)
	admin.Patch("/users/:id/active", adminH.SetActive)

	app.Use("/ws", jwtAuth, middleware.AttachJWTLocals(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(realtime.Serve(d.Hub, d.Log)))
}
