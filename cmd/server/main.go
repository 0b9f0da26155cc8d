package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mzeli/pigeon/internal/config"
	"github.com/mzeli/pigeon/internal/database"
	"github.com/mzeli/pigeon/internal/docstore"
	docstorerepo "github.com/mzeli/pigeon/internal/repository/docstore"
	"github.com/mzeli/pigeon/internal/service"
	"github.com/mzeli/pigeon/internal/storage"
	"github.com/mzeli/pigeon/internal/transport/http/handlers"
	"github.com/mzeli/pigeon/internal/transport/http/middleware"
	"github.com/mzeli/pigeon/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Document store
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	store := docstore.NewWatched(backend)
	defer store.Close()
	log.Printf("Using %s document store", cfg.StoreBackend)

	// Blob storage
	blobs, err := storage.NewDiskStore(cfg.AvatarDir, cfg.AvatarBaseURL)
	if err != nil {
		log.Fatal(err)
	}

	// Repositories
	userRepo := docstorerepo.NewUserRepo(store)
	convRepo := docstorerepo.NewConversationRepo(store)
	indexRepo := docstorerepo.NewIndexRepo(store)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	userService := service.NewUserService(userRepo, blobs)
	chatService := service.NewChatService(convRepo, indexRepo, userRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	chatHandler := handlers.NewChatHandler(chatService)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /avatars/", http.StripPrefix("/avatars/", http.FileServer(http.Dir(cfg.AvatarDir))))
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, chatService, cfg.JWTSecret))

	// Protected - Users
	mux.Handle("GET /api/v1/users/me", auth(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PATCH /api/v1/users/me", auth(http.HandlerFunc(userHandler.CompleteProfile)))
	mux.Handle("GET /api/v1/users/search", auth(http.HandlerFunc(userHandler.Search)))

	// Protected - Chats
	mux.Handle("POST /api/v1/contacts", auth(http.HandlerFunc(chatHandler.AddContact)))
	mux.Handle("GET /api/v1/chats", auth(http.HandlerFunc(chatHandler.ListChats)))
	mux.Handle("GET /api/v1/chats/{id}/messages", auth(http.HandlerFunc(chatHandler.ListMessages)))
	mux.Handle("POST /api/v1/chats/{id}/messages", auth(http.HandlerFunc(chatHandler.SendMessage)))
	mux.Handle("POST /api/v1/chats/{id}/read", auth(http.HandlerFunc(chatHandler.MarkRead)))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.CORS(mux),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return docstore.NewMemoryStore(), nil
	case "pebble":
		return docstore.OpenPebble(cfg.PebblePath)
	case "postgres":
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return docstore.NewPostgresStore(ctx, pool)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
