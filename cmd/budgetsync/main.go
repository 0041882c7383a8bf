package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpaulose/budgetsync/internal/auth"
	"github.com/mpaulose/budgetsync/internal/budget/application"
	"github.com/mpaulose/budgetsync/internal/budget/infrastructure"
	"github.com/mpaulose/budgetsync/internal/budget/interfaces"
	database "github.com/mpaulose/budgetsync/internal/db"
	"github.com/mpaulose/budgetsync/internal/lifecycle"
	"github.com/mpaulose/budgetsync/internal/notify"
	"github.com/mpaulose/budgetsync/internal/user"
)

type Response struct {
	Message string `json:"message"`
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	}

	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}

	respondJSON(w, status, payload)
}

type Server struct {
	router        *http.ServeMux
	jwtManager    *auth.JWTManager
	budgetHandler *interfaces.BudgetHandler
	eventHandler  *interfaces.EventHandler
	userHandler   *user.Handler
	dbService     *database.DBService
}

func NewServer(
	jwtManager *auth.JWTManager,
	budgetHandler *interfaces.BudgetHandler,
	eventHandler *interfaces.EventHandler,
	userHandler *user.Handler,
	dbService *database.DBService,
) *Server {
	return &Server{
		router:        http.NewServeMux(),
		jwtManager:    jwtManager,
		budgetHandler: budgetHandler,
		eventHandler:  eventHandler,
		userHandler:   userHandler,
		dbService:     dbService,
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(Response{Message: "Path not found"})
}

func checkConfiguration() error {
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file, continuing with system environment variables")
	}

	if os.Getenv("JWT_SECRET") == "" {
		return errors.New("no JWT_SECRET Provided")
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	health := s.dbService.Health()
	status := http.StatusOK
	if health["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

func (s *Server) RegisterRoutes() {
	protected := s.jwtManager.Middleware()

	mainRouter := http.NewServeMux()

	// Public routes
	mainRouter.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))
	mainRouter.Handle("GET /metrics", promhttp.Handler())
	mainRouter.Handle("POST /api/users", http.HandlerFunc(s.userHandler.HandleCreateUser))

	// User profiles
	mainRouter.Handle("GET /api/users/{id}", protected(http.HandlerFunc(s.userHandler.HandleGetUser)))
	mainRouter.Handle("PUT /api/users/{id}", protected(http.HandlerFunc(s.userHandler.HandleUpdateUser)))
	mainRouter.Handle("DELETE /api/users/{id}", protected(http.HandlerFunc(s.userHandler.HandleDeleteUser)))

	// Budgets
	mainRouter.Handle("POST /api/budgets", protected(http.HandlerFunc(s.budgetHandler.CreateBudget)))
	mainRouter.Handle("GET /api/budgets", protected(http.HandlerFunc(s.budgetHandler.GetBudgets)))
	mainRouter.Handle("GET /api/budgets/{budgetID}", protected(http.HandlerFunc(s.budgetHandler.GetBudget)))
	mainRouter.Handle("GET /api/budgets/{budgetID}/categories", protected(http.HandlerFunc(s.budgetHandler.GetCategories)))
	mainRouter.Handle("GET /api/budgets/{budgetID}/expenses", protected(http.HandlerFunc(s.budgetHandler.GetExpenses)))
	mainRouter.Handle("GET /api/budgets/{budgetID}/participants", protected(http.HandlerFunc(s.budgetHandler.GetParticipants)))
	mainRouter.Handle("POST /api/budgets/{budgetID}/participants", protected(http.HandlerFunc(s.budgetHandler.AddParticipant)))
	mainRouter.Handle("DELETE /api/budgets/{budgetID}/participants/{userID}", protected(http.HandlerFunc(s.budgetHandler.RemoveParticipant)))

	// Offline batch ingestion and pull sync feed
	mainRouter.Handle("POST /api/events", protected(http.HandlerFunc(s.eventHandler.HandleBatch)))
	mainRouter.Handle("GET /api/events", protected(http.HandlerFunc(s.eventHandler.HandleSync)))

	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = mainRouter
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := checkConfiguration(); err != nil {
		slog.Error("missing configuration, update to start server", "error", err)
		os.Exit(1)
	}

	life := lifecycle.New()
	defer life.Shutdown()

	dbService, err := database.NewDBService()
	if err != nil {
		slog.Error("could not initialize database", "error", err)
		os.Exit(1)
	}
	life.OnShutdown(func() {
		if err := dbService.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	})

	jwtManager, err := auth.NewJWTManager()
	if err != nil {
		slog.Error("could not initialize token manager", "error", err)
		os.Exit(1)
	}

	var publisher application.EventPublisher = notify.NoopPublisher{}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		rabbitPublisher, err := notify.NewRabbitMQPublisher(amqpURL)
		if err != nil {
			slog.Error("could not connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		life.OnShutdown(rabbitPublisher.Close)
		publisher = rabbitPublisher
	}

	store := infrastructure.NewStore(dbService.DB)
	budgetService := application.NewService(store, publisher)
	budgetHandler := interfaces.NewBudgetHandler(budgetService, respondJSON, respondError)
	eventHandler := interfaces.NewEventHandler(budgetService, respondJSON, respondError)

	userRepo := user.NewUserRepository(dbService.DB)
	userService := user.NewUserService(userRepo)
	userHandler := user.NewHandler(userService)

	server := NewServer(jwtManager, budgetHandler, eventHandler, userHandler, dbService)
	server.RegisterRoutes()

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: loggingMiddleware(server.router),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
}
