package profile

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	profilestore "github.com/hayasepd/yorutomo/backend/internal/store/profile"
	"github.com/hayasepd/yorutomo/backend/pkg/utils"
)

// Handler はプロフィールと認証状態の HTTP 処理器。
type Handler struct {
	profiles *profilestore.Store
}

// New は profile 処理器を作成する。
func New(profiles *profilestore.Store) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes はプロフィール関連のルートを登録する。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/profile", h.handleSave)
	r.Get("/profile", h.handleGet)
	r.Patch("/profile", h.handleUpdate)
	r.Get("/auth/state", h.handleAuthState)
}

// handleSave はオンボーディングで作成されたプロフィールを保存する。
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload profile.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload.Nickname = strings.TrimSpace(payload.Nickname)
	if payload.Nickname == "" {
		utils.RespondError(w, http.StatusBadRequest, "ニックネームを入力してください")
		return
	}

	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.CreatedAt == "" {
		payload.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	payload.IsOnboardingComplete = true

	if err := h.profiles.Save(payload); err != nil {
		log.Printf("[profile] save failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "プロフィールの保存に失敗しました")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, payload)
}

func (h *Handler) handleGet(w http.ResponseWriter, _ *http.Request) {
	p, ok := h.profiles.Get()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "profile not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleUpdate は既存プロフィールへの部分更新。作成前の更新はエラー。
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload profile.Update
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	merged, err := h.profiles.Update(payload)
	if err != nil {
		if errors.Is(err, profilestore.ErrNoProfile) {
			utils.RespondError(w, http.StatusNotFound, "プロフィールが見つかりません")
			return
		}
		log.Printf("[profile] update failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "プロフィールの更新に失敗しました")
		return
	}

	utils.RespondJSON(w, http.StatusOK, merged)
}

func (h *Handler) handleAuthState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.AuthState())
}
