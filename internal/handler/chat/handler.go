package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	aiservice "github.com/hayasepd/yorutomo/backend/internal/service/ai"
	diarystore "github.com/hayasepd/yorutomo/backend/internal/store/diary"
	profilestore "github.com/hayasepd/yorutomo/backend/internal/store/profile"
	"github.com/hayasepd/yorutomo/backend/pkg/utils"
)

// Handler は会話ターンの HTTP 処理器。転送されたトランスクリプト全体を
// 受け取り、次のアシスタント発話を返す。
type Handler struct {
	ai       *aiservice.Service
	profiles *profilestore.Store
	diaries  *diarystore.Store
	// streaming toggles the SSE endpoint behavior; mirrors ARK_STREAM.
	streaming bool
}

// New は chat 処理器を作成する。ai may be nil when the model is not
// configured; requests then fail with 503.
func New(ai *aiservice.Service, profiles *profilestore.Store, diaries *diarystore.Store, streaming bool) *Handler {
	return &Handler{ai: ai, profiles: profiles, diaries: diaries, streaming: streaming}
}

// RegisterRoutes は会話関連のルートを登録する。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleChatStream)
}

type chatRequest struct {
	Messages *[]chat.Message `json:"messages"`
}

// decodeTranscript rejects a missing or non-array messages field.
func decodeTranscript(r *http.Request) ([]chat.Message, bool) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, false
	}
	if payload.Messages == nil {
		return nil, false
	}
	return *payload.Messages, true
}

// handleChat は会話の次の一手を生成する。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	messages, ok := decodeTranscript(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "メッセージが正しく送信されませんでした")
		return
	}

	if h.ai == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "AI機能が利用できません")
		return
	}

	prof, digest := h.promptContext()
	reply, err := h.ai.Respond(r.Context(), messages, prof, digest)
	if err != nil {
		log.Printf("[chat] conversation call failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "チャットの処理中にエラーが発生しました")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": reply,
	})
}

// streamEvent is one SSE chunk of the streamed reply.
type streamEvent struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleChatStream は返答をチャンク単位で SSE 配信する。
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	messages, ok := decodeTranscript(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "メッセージが正しく送信されませんでした")
		return
	}

	if h.ai == nil || !h.streaming {
		utils.RespondError(w, http.StatusServiceUnavailable, "AIストリーミングが利用できません")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	prof, digest := h.promptContext()
	stream, err := h.ai.StreamReply(r.Context(), messages, prof, digest)
	if err != nil {
		log.Printf("[chat] stream setup failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "チャットの処理中にエラーが発生しました")
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			utils.SendSSEChunk(w, flusher, streamEvent{Event: "error", Error: recvErr.Error()})
			return
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			utils.SendSSEChunk(w, flusher, streamEvent{Event: "delta", Content: chunk.Content})
		}
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		utils.SendSSEChunk(w, flusher, streamEvent{Event: "error", Error: err.Error()})
		return
	}

	utils.SendSSEChunk(w, flusher, streamEvent{Event: "message", Content: full.Content})
	utils.SendSSEChunk(w, flusher, streamEvent{Event: "end", Finished: true})
}

func (h *Handler) promptContext() (*profile.UserProfile, string) {
	var prof *profile.UserProfile
	if h.profiles != nil {
		if p, ok := h.profiles.Get(); ok {
			prof = &p
		}
	}
	digest := ""
	if h.diaries != nil {
		digest = h.diaries.SummaryText()
	}
	return prof, digest
}
