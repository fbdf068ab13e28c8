package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionservice "github.com/hayasepd/yorutomo/backend/internal/service/session"
	"github.com/hayasepd/yorutomo/backend/pkg/utils"
)

// Handler はセッションライフサイクルの HTTP 処理器。
type Handler struct {
	sessions *sessionservice.Controller
}

// New は session 処理器を作成する。
func New(sessions *sessionservice.Controller) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes はセッション関連のルートを登録する。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleStart)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Post("/sessions/{sessionID}/extend", h.handleExtend)
	r.Post("/sessions/{sessionID}/finish", h.handleFinish)
	r.Get("/sessions/{sessionID}/ws", h.handleSocket)
}

// handleStart はウェルカムメッセージ入りの新規セッションを開始する。
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Start(r.Context())
	utils.RespondJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleSendMessage はユーザー発話を追加して返答を生成する。応答待ちの間の
// 再送信は 409 で拒否される（キューには入れない）。
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	snap, err := h.sessions.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Content)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Extend(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleFinish はセッションを確定し要約結果を返す。モデル呼び出しが失敗した
// 場合は 502 を返し、セッションは再試行可能なまま残る。
func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.Finish(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		switch {
		case errors.Is(err, sessionservice.ErrSessionNotFound),
			errors.Is(err, sessionservice.ErrBusy),
			errors.Is(err, sessionservice.ErrNotActive),
			errors.Is(err, sessionservice.ErrNotEligible),
			errors.Is(err, sessionservice.ErrUnavailable):
			h.respondSessionError(w, err)
		default:
			utils.RespondError(w, http.StatusBadGateway, "日記の生成でエラーが発生しました。")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"diaryEntry":      result.DiaryEntry,
		"emotionScore":    result.EmotionScore,
		"keywords":        result.Keywords,
		"highlights":      result.Highlights,
		"growthPoints":    result.GrowthPoints,
		"sessionDuration": result.SessionDuration,
	})
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, sessionservice.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "応答の生成中です。少しお待ちください")
	case errors.Is(err, sessionservice.ErrNotActive):
		utils.RespondError(w, http.StatusConflict, "セッションは入力を受け付けていません")
	case errors.Is(err, sessionservice.ErrNotEligible):
		utils.RespondError(w, http.StatusConflict, "もう少し会話してからまとめてください")
	case errors.Is(err, sessionservice.ErrUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, "AI機能が利用できません")
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
