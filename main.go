package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nlagree/cryptochat/internal/auth"
	"github.com/nlagree/cryptochat/internal/config"
	"github.com/nlagree/cryptochat/internal/handlers"
	"github.com/nlagree/cryptochat/internal/middleware"
	"github.com/nlagree/cryptochat/internal/store/sqlstore"
	"github.com/nlagree/cryptochat/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	auth.Secret = []byte(cfg.JWTSecret)
	auth.TokenTTL = cfg.TokenTTL

	store, err := sqlstore.New(cfg.DBDriver, cfg.DBSource)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	hub := ws.NewHub(store, logger)
	go hub.Run()

	authHandler := &handlers.AuthHandler{Store: store, Logger: logger}
	conversationHandler := &handlers.ConversationHandler{Store: store, PageSize: cfg.PageSize, Logger: logger}
	messageHandler := &handlers.MessageHandler{Store: store, Hub: hub, Logger: logger}

	r := mux.NewRouter()
	r.Use(middleware.Logging(logger))

	// Public endpoints
	r.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/verify-2fa", authHandler.VerifyTwoFactor).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated API
	api := r.NewRoute().Subrouter()
	api.Use(middleware.Auth)
	api.HandleFunc("/users", authHandler.ListUsers).Methods("GET")
	api.HandleFunc("/2fa/setup", authHandler.SetupTwoFactor).Methods("POST")
	api.HandleFunc("/2fa/enable", authHandler.EnableTwoFactor).Methods("POST")
	api.HandleFunc("/conversations", conversationHandler.CreateConversation).Methods("POST")
	api.HandleFunc("/conversations", conversationHandler.ListConversations).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", messageHandler.ListMessages).Methods("GET")
	api.HandleFunc("/messages", messageHandler.CreateMessage).Methods("POST")

	// WebSocket endpoint: the token is validated inside ServeWs before the
	// upgrade, so it stays outside the Auth middleware.
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.HandshakeTimeout,
	}

	logger.Info("starting server", zap.String("addr", cfg.Addr), zap.String("driver", cfg.DBDriver))
	logger.Fatal("server stopped", zap.Error(server.ListenAndServe()))
}
