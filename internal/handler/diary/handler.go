package diary

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/diary"
	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	summaryservice "github.com/hayasepd/yorutomo/backend/internal/service/summary"
	diarystore "github.com/hayasepd/yorutomo/backend/internal/store/diary"
	profilestore "github.com/hayasepd/yorutomo/backend/internal/store/profile"
	"github.com/hayasepd/yorutomo/backend/pkg/utils"
)

// Handler は日記生成と保存済み日記の HTTP 処理器。
type Handler struct {
	summarizer *summaryservice.Service
	diaries    *diarystore.Store
	profiles   *profilestore.Store
}

// New は diary 処理器を作成する。summarizer may be nil when the model is
// not configured.
func New(summarizer *summaryservice.Service, diaries *diarystore.Store, profiles *profilestore.Store) *Handler {
	return &Handler{summarizer: summarizer, diaries: diaries, profiles: profiles}
}

// RegisterRoutes は日記関連のルートを登録する。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-diary", h.handleGenerate)
	r.Get("/diaries", h.handleList)
	r.Post("/diaries", h.handleSave)
	r.Get("/diaries/{diaryID}", h.handleGet)
	r.Delete("/diaries/{diaryID}", h.handleDelete)
	r.Get("/result", h.handleConsumeResult)
}

// handleGenerate はトランスクリプトから構造化された日記を生成する。
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages *[]chat.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Messages == nil {
		utils.RespondError(w, http.StatusBadRequest, "メッセージが正しく送信されませんでした")
		return
	}

	if h.summarizer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "AI機能が利用できません")
		return
	}

	var prof *profile.UserProfile
	if p, ok := h.profiles.Get(); ok {
		prof = &p
	}

	result, err := h.summarizer.Summarize(r.Context(), *payload.Messages, prof, h.diaries.SummaryText())
	if err != nil {
		log.Printf("[diary] generation failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "日記の生成中にエラーが発生しました")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"diaryEntry":   result.DiaryEntry,
		"emotionScore": result.EmotionScore,
		"keywords":     result.Keywords,
		"highlights":   result.Highlights,
		"growthPoints": result.GrowthPoints,
	})
}

// handleSave はリザルト画面の内容を日記コレクションへ確定保存する。
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload diary.Handoff
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.DiaryEntry == "" {
		utils.RespondError(w, http.StatusBadRequest, "diaryEntry is required")
		return
	}

	record, err := h.diaries.Save(payload.Summary(), payload.SessionDuration)
	if err != nil {
		log.Printf("[diary] save failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "日記の保存に失敗しました")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"diaries": h.diaries.GetAll()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := h.diaries.GetByID(chi.URLParam(r, "diaryID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "diary not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, record)
}

// handleDelete は指定 ID の日記を削除する。存在しない ID はエラーではなく
// deleted=false を返す。
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.diaries.DeleteByID(chi.URLParam(r, "diaryID"))
	if err != nil {
		log.Printf("[diary] delete failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "日記の削除に失敗しました")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// handleConsumeResult はセッション確定で退避された結果を一度だけ取り出す。
// 二度目の読み出しは 404 になる。
func (h *Handler) handleConsumeResult(w http.ResponseWriter, _ *http.Request) {
	rec, ok := h.diaries.ConsumeHandoff()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no pending result")
		return
	}
	utils.RespondJSON(w, http.StatusOK, rec)
}
