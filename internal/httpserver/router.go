package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"reelcv-backend/internal/config"
	"reelcv-backend/internal/outbox"
	"reelcv-backend/internal/presence"
	"reelcv-backend/internal/security"
	"reelcv-backend/internal/service"
	"reelcv-backend/internal/store/sqlite"
	"reelcv-backend/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware. It also assembles the outbox worker, which shares the
// repositories and the websocket hub; the caller owns the worker's
// lifecycle.
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	encryptor *security.Encryptor,
	tracker *presence.Tracker,
) (http.Handler, *outbox.Worker) {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	requestRepo := sqlite.NewRequestRepo(db)
	connectionRepo := sqlite.NewConnectionRepo(db)
	threadRepo := sqlite.NewThreadRepo(db)
	messageRepo := sqlite.NewMessageRepo(db)
	notificationRepo := sqlite.NewNotificationRepo(db)
	outboxRepo := sqlite.NewOutboxRepo(db)

	// Services
	authSvc := service.NewAuthService(userRepo, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(userRepo)
	requestSvc := service.NewRequestService(requestRepo, connectionRepo, userRepo)
	connectionSvc := service.NewConnectionService(connectionRepo, userRepo)
	threadSvc := service.NewThreadService(threadRepo, connectionRepo, userRepo, encryptor)
	msgSvc := service.NewMessageService(threadRepo, connectionRepo, messageRepo, userRepo, encryptor, cfg.MessageMaxChars, cfg.MessageListLimit)
	notificationSvc := service.NewNotificationService(notificationRepo)

	worker := outbox.NewWorker(outboxRepo, userRepo, connectionRepo, threadRepo, notificationRepo, hub, cfg.OutboxPollInterval)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName + " API",
			"version": "1.0.0",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, userRepo))

			r.Post("/auth/logout", handleLogout(authSvc))
			r.Get("/auth/me", handleMe())

			// Users and presence
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/{uid}", handleGetUser(userSvc))
				r.Patch("/me", handleUpdateProfile(userSvc))
				r.Get("/{uid}/presence", handleGetPresence(tracker))
			})

			// Connection requests
			r.Route("/requests", func(r chi.Router) {
				r.Post("/", handleSendRequest(requestSvc))
				r.Get("/", handleListRequests(requestSvc))
				r.Post("/{requestID}/accept", handleResolveRequest(requestSvc, "accept"))
				r.Post("/{requestID}/decline", handleResolveRequest(requestSvc, "decline"))
				r.Post("/{requestID}/cancel", handleResolveRequest(requestSvc, "cancel"))
			})

			// Connections
			r.Route("/connections", func(r chi.Router) {
				r.Get("/", handleListConnections(connectionSvc))
				r.Get("/{uid}", handleGetConnection(connectionSvc))
				r.Post("/{uid}/respond", handleRespondConnection(connectionSvc))
			})

			// Threads and messages
			r.Route("/threads", func(r chi.Router) {
				r.Post("/open", handleOpenThread(threadSvc))
				r.Get("/", handleListThreads(threadSvc))
				r.Post("/{threadID}/read", handleMarkThreadRead(threadSvc))
				r.Get("/{threadID}/messages", handleListMessages(msgSvc))
				r.Post("/{threadID}/messages", handleSendMessage(msgSvc))
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", handleListNotifications(notificationSvc))
				r.Post("/read-all", handleMarkAllNotificationsRead(notificationSvc))
				r.Post("/{notificationID}/read", handleMarkNotificationRead(notificationSvc))
			})

			// Uploads (implementation in separate file)
			r.Mount("/uploads", UploadRoutes(cfg))
		})
	})

	// WebSocket endpoint
	heartbeat := cfg.PresenceTTL / 3
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, userRepo, threadSvc, msgSvc, tracker, cfg.CORSOrigins, heartbeat))

	return r, worker
}
