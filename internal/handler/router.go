package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/hayasepd/yorutomo/backend/internal/handler/chat"
	diaryHandler "github.com/hayasepd/yorutomo/backend/internal/handler/diary"
	profileHandler "github.com/hayasepd/yorutomo/backend/internal/handler/profile"
	sessionHandler "github.com/hayasepd/yorutomo/backend/internal/handler/session"
	middlewarePkg "github.com/hayasepd/yorutomo/backend/internal/middleware"
	aiService "github.com/hayasepd/yorutomo/backend/internal/service/ai"
	sessionService "github.com/hayasepd/yorutomo/backend/internal/service/session"
	summaryService "github.com/hayasepd/yorutomo/backend/internal/service/summary"
	diaryStore "github.com/hayasepd/yorutomo/backend/internal/store/diary"
	profileStore "github.com/hayasepd/yorutomo/backend/internal/store/profile"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(
	aiSvc *aiService.Service,
	summarySvc *summaryService.Service,
	sessions *sessionService.Controller,
	diaries *diaryStore.Store,
	profiles *profileStore.Store,
	streaming bool,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(aiSvc, profiles, diaries, streaming).RegisterRoutes(api)
		diaryHandler.New(summarySvc, diaries, profiles).RegisterRoutes(api)
		profileHandler.New(profiles).RegisterRoutes(api)
		sessionHandler.New(sessions).RegisterRoutes(api)
	})

	return r
}
