package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WSHandler streams a live session to one participant or host over a WebSocket.
type WSHandler struct {
	sessions *app.SessionService
	auth     *Authenticator
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService, auth *Authenticator) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`

	last bool
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage {
	_, msg := statusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeHTTP authenticates the caller, joins students to the session and relays snapshots
// until the session completes or the client disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	who, err := h.auth.Authenticate(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	code := app.NormalizeJoinCode(r.PathValue("code"))
	if code == "" {
		http.Error(w, "missing join code", http.StatusBadRequest)
		return
	}

	// Resolve the session before upgrading so unknown codes get a plain 404.
	var joined domain.SessionSnapshot
	if who.Role == domain.RoleStudent {
		joined, err = h.sessions.Join(r.Context(), code, who)
	} else {
		joined, err = h.sessions.Snapshot(r.Context(), code)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The request context is not reliable once the connection is hijacked.
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates, unsubscribe, err := h.sessions.Subscribe(ctx, code)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer unsubscribe()
	if who.Role == domain.RoleStudent {
		defer func() {
			// Only succeeds while the session is still waiting.
			_, _ = h.sessions.Leave(context.Background(), code, who)
		}()
	}

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: every frame goes through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if msg.last {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session completed"),
					time.Now().Add(writeWait))
				conn.Close()
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				conn.Close()
				return
			}
		}
	}()

	emit := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	emit(outboundMessage{Type: "joined", Payload: joined})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					emit(outboundMessage{last: true})
					return
				}
				select {
				case send <- outboundMessage{Type: "session", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(ctx, code, who, inbound); ok {
			if !emit(reply) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle runs one inbound command. State changes reach the client through the subscription,
// so host commands only reply on error.
func (h *WSHandler) handle(ctx context.Context, code string, who domain.Identity, msg inboundMessage) (outboundMessage, bool) {
	var err error
	switch msg.Type {
	case "answer":
		var answer domain.LiveAnswer
		if err := json.Unmarshal(msg.Payload, &answer); err != nil {
			return outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}, true
		}
		result, err := h.sessions.SubmitAnswer(ctx, code, who, answer)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage{Type: "answerResult", Payload: result}, true
	case "start":
		_, err = h.sessions.Start(ctx, code, who)
	case "close_question":
		_, err = h.sessions.CloseQuestion(ctx, code, who)
	case "show_leaderboard":
		_, err = h.sessions.ShowLeaderboard(ctx, code, who)
	case "next":
		_, err = h.sessions.NextQuestion(ctx, code, who)
	case "cancel":
		_, err = h.sessions.Cancel(ctx, code, who)
	default:
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}, true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage{}, false
}
