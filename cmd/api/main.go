package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hayasepd/yorutomo/backend/internal/config"
	"github.com/hayasepd/yorutomo/backend/internal/handler"
	"github.com/hayasepd/yorutomo/backend/internal/service/ai"
	sessionservice "github.com/hayasepd/yorutomo/backend/internal/service/session"
	"github.com/hayasepd/yorutomo/backend/internal/service/summary"
	"github.com/hayasepd/yorutomo/backend/internal/storage"
	diarystore "github.com/hayasepd/yorutomo/backend/internal/store/diary"
	profilestore "github.com/hayasepd/yorutomo/backend/internal/store/profile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize local persistence and stores
	kv, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	diaries := diarystore.NewStore(kv)
	profiles := profilestore.NewStore(kv)

	// Initialize AI services: one model profile for natural conversation,
	// one low-randomness profile for structured diary extraction.
	var aiSvc *ai.Service
	var summarySvc *summary.Service
	if cfg.AI.Enabled() {
		convModel, err := cfg.AI.NewConversationModel(ctx)
		if err != nil {
			log.Fatalf("failed to create conversation model: %v", err)
		}
		aiSvc, err = ai.NewService(ctx, convModel)
		if err != nil {
			log.Fatalf("failed to initialize conversation service: %v", err)
		}

		summaryModel, err := cfg.AI.NewSummaryModel(ctx)
		if err != nil {
			log.Fatalf("failed to create summary model: %v", err)
		}
		summarySvc, err = summary.NewService(ctx, summaryModel, summary.Config{})
		if err != nil {
			log.Fatalf("failed to initialize summary service: %v", err)
		}
		log.Println("AI services initialized successfully")
	} else {
		log.Println("Ark の認証情報が未設定のため、AI 機能をスキップします")
	}

	// Session state machine. The interface vars stay nil when the AI
	// capability is off, so the controller reports unavailability instead
	// of dereferencing a typed nil.
	var conv sessionservice.Responder
	var summarizer sessionservice.Summarizer
	if aiSvc != nil {
		conv = aiSvc
	}
	if summarySvc != nil {
		summarizer = summarySvc
	}
	sessions := sessionservice.NewController(
		conv, summarizer, profiles, diaries,
		sessionservice.NewClock(),
		sessionservice.Config{Duration: cfg.Session.Duration},
	)

	router := handler.NewRouter(aiSvc, summarySvc, sessions, diaries, profiles, cfg.AI.StreamResponse)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("yorutomo backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
