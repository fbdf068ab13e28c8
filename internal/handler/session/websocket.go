package session

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	sessionservice "github.com/hayasepd/yorutomo/backend/internal/service/session"
	"github.com/hayasepd/yorutomo/backend/pkg/utils"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// ローカルアプリ用途のためオリジン検証は行わない。
	CheckOrigin: func(*http.Request) bool { return true },
}

// inboundFrame はクライアントからの受信フレーム。
type inboundFrame struct {
	Type    string `json:"type"` // message | extend
	Content string `json:"content,omitempty"`
}

// outboundFrame はサーバから押し出すフレーム。イベントかスナップショットの
// どちらか一方を積む。
type outboundFrame struct {
	Type     string                   `json:"type"`
	Event    *sessionservice.Event    `json:"event,omitempty"`
	Snapshot *sessionservice.Snapshot `json:"snapshot,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// handleSocket はライブセッション用の WebSocket。カウントダウンの tick、
// 状態遷移、追加されたメッセージをクライアントへ配信し、ユーザー発話と
// 延長操作を受け付ける。
func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := h.sessions.Get(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[session] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel, err := h.sessions.Subscribe(sessionID)
	if err != nil {
		return
	}
	defer cancel()

	outbound := make(chan outboundFrame, 32)
	done := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer only.
	go func() {
		for {
			select {
			case <-done:
				return
			case frame := <-outbound:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(frame); err != nil {
					log.Printf("[session] websocket write failed: %v", err)
					return
				}
			}
		}
	}()

	// Event forwarder.
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				evCopy := ev
				select {
				case outbound <- outboundFrame{Type: "event", Event: &evCopy}:
				case <-done:
					return
				}
			}
		}
	}()

	outbound <- outboundFrame{Type: "snapshot", Snapshot: &snap}

	// Read loop; closing the connection tears everything down.
	defer close(done)
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[session] websocket closed unexpectedly: %v", err)
			}
			return
		}

		switch frame.Type {
		case "message":
			if frame.Content == "" {
				continue
			}
			if _, err := h.sessions.SendMessage(r.Context(), sessionID, frame.Content); err != nil {
				h.pushError(outbound, done, err)
			}
		case "extend":
			if _, err := h.sessions.Extend(sessionID); err != nil {
				h.pushError(outbound, done, err)
			}
		default:
			// 未知のフレームは無視する。
		}
	}
}

func (h *Handler) pushError(outbound chan<- outboundFrame, done <-chan struct{}, err error) {
	msg := err.Error()
	if errors.Is(err, sessionservice.ErrBusy) {
		msg = "応答の生成中です。少しお待ちください"
	}
	select {
	case outbound <- outboundFrame{Type: "error", Error: msg}:
	case <-done:
	}
}
