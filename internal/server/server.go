package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/handler"
	"github.com/emberhabit/ember/internal/middleware"
	"github.com/emberhabit/ember/internal/push"
	"github.com/emberhabit/ember/internal/store"
	"github.com/emberhabit/ember/internal/tracker"
	ws "github.com/emberhabit/ember/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	tracker       *tracker.Tracker
	authH         *handler.AuthHandler
	streakH       *handler.StreakHandler
	journalH      *handler.JournalHandler
	pushH         *handler.PushHandler
	sessionStore  *store.SessionStore
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	pushService   *push.Service
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, clock *daykey.Clock, vapidPublicKey, vapidPrivateKey string, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	streakStore := store.NewStreakStore(db)
	journalStore := store.NewJournalStore(db)
	checkinStore := store.NewCheckInStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)

	trk := tracker.New(
		streakStore, journalStore, checkinStore,
		clock, hub, logger.With("component", "tracker"),
	)

	// Push is optional; without VAPID keys the endpoints are not registered.
	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if vapidPublicKey != "" && vapidPrivateKey != "" {
		pushSvc = push.NewService(vapidPublicKey, vapidPrivateKey)
		pushSched = push.NewScheduler(
			pushSvc, pushStore, checkinStore, settingsStore,
			clock, logger.With("component", "push"),
		)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		tracker:       trk,
		authH:         handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		streakH:       handler.NewStreakHandler(trk, logger.With("component", "streak")),
		journalH:      handler.NewJournalHandler(trk, logger.With("component", "journal")),
		pushH:         pushH,
		sessionStore:  sessionStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		pushService:   pushSvc,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the check-in reminder scheduler, nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Streak and check-in
	mux.HandleFunc("GET /api/streak", s.streakH.Get)
	mux.HandleFunc("POST /api/checkin", s.streakH.CheckIn)
	mux.HandleFunc("POST /api/streak/freeze", s.streakH.UseFreeze)

	// Journal
	mux.HandleFunc("GET /api/journal", s.journalH.List)
	mux.HandleFunc("GET /api/journal/today", s.journalH.GetToday)
	mux.HandleFunc("PUT /api/journal/today", s.journalH.SaveToday)
	mux.HandleFunc("PUT /api/journal/{id}", s.journalH.Update)

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
