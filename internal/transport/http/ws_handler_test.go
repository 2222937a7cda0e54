package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"edu-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialSession(t *testing.T, env *testEnv, code string, who domain.Identity) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sessions/" + code + "?token=" + env.token(t, who)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func withStatus(status domain.SessionStatus) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var snapshot domain.SessionSnapshot
		return json.Unmarshal(raw, &snapshot) == nil && snapshot.Status == status
	}
}

func TestWebSocketLiveSessionFlow(t *testing.T) {
	env := newTestEnv(t, liveQuiz())
	ctx := context.Background()
	if err := env.quizzes.SaveScheduledQuiz(ctx, liveSchedule()); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	created, err := env.services.Sessions.CreateSession(ctx, teacher, "sched-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	student := dialSession(t, env, strings.ToLower(created.JoinCode), alice)
	var joined domain.SessionSnapshot
	if err := json.Unmarshal(readUntil(t, student, "joined", nil), &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if _, ok := joined.Participant(alice.UserID); !ok {
		t.Fatalf("expected alice in joined snapshot, got %+v", joined.Participants)
	}

	host := dialSession(t, env, created.JoinCode, teacher)
	readUntil(t, host, "joined", nil)

	if err := student.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	var errPayload errorPayload
	if err := json.Unmarshal(readUntil(t, student, "error", nil), &errPayload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(errPayload.Message, "host") {
		t.Fatalf("expected host error, got %q", errPayload.Message)
	}

	if err := host.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, student, "session", withStatus(domain.SessionQuestion))

	answer := map[string]any{"type": "answer", "payload": map[string]any{"questionId": "q1", "optionId": "o2"}}
	if err := student.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var result domain.AnswerResult
	if err := json.Unmarshal(readUntil(t, student, "answerResult", nil), &result); err != nil {
		t.Fatalf("decode answer result: %v", err)
	}
	if !result.Correct || result.Awarded < 5 || result.TotalScore != result.Awarded || result.Rank != 1 {
		t.Fatalf("unexpected answer result: %+v", result)
	}

	// Everyone answered, so the question moves to results on its own.
	readUntil(t, host, "session", withStatus(domain.SessionResults))
	if err := host.WriteJSON(map[string]any{"type": "show_leaderboard"}); err != nil {
		t.Fatalf("write show_leaderboard: %v", err)
	}
	readUntil(t, student, "session", withStatus(domain.SessionLeaderboard))
	if err := host.WriteJSON(map[string]any{"type": "next"}); err != nil {
		t.Fatalf("write next: %v", err)
	}
	readUntil(t, student, "session", withStatus(domain.SessionCompleted))

	_ = student.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wireMessage
	err = student.ReadJSON(&msg)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after completion, got %v (%+v)", err, msg)
	}
}

func TestWebSocketRejectsUnknownSessionAndMissingToken(t *testing.T) {
	env := newTestEnv(t, liveQuiz())
	base := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sessions/"

	_, resp, err := websocket.DefaultDialer.Dial(base+"ZZZZZZ?token="+env.token(t, alice), nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(base+"ZZZZZZ", nil)
	if err == nil {
		t.Fatalf("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketStudentReconnectsMidQuestion(t *testing.T) {
	env := newTestEnv(t, liveQuiz())
	ctx := context.Background()
	if err := env.quizzes.SaveScheduledQuiz(ctx, liveSchedule()); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	created, err := env.services.Sessions.CreateSession(ctx, teacher, "sched-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	first := dialSession(t, env, created.JoinCode, alice)
	readUntil(t, first, "joined", nil)
	if _, err := env.services.Sessions.Start(ctx, created.JoinCode, teacher); err != nil {
		t.Fatalf("start: %v", err)
	}
	readUntil(t, first, "session", withStatus(domain.SessionQuestion))
	first.Close()

	second := dialSession(t, env, created.JoinCode, alice)
	var rejoined domain.SessionSnapshot
	if err := json.Unmarshal(readUntil(t, second, "joined", nil), &rejoined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if rejoined.Status != domain.SessionQuestion || len(rejoined.Participants) != 1 {
		t.Fatalf("expected to rejoin the open question, got %+v", rejoined)
	}

	answer := map[string]any{"type": "answer", "payload": map[string]any{"questionId": "q1", "optionId": "o2"}}
	if err := second.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var result domain.AnswerResult
	if err := json.Unmarshal(readUntil(t, second, "answerResult", nil), &result); err != nil {
		t.Fatalf("decode answer result: %v", err)
	}
	if !result.Correct || result.Rank != 1 {
		t.Fatalf("unexpected answer result after reconnect: %+v", result)
	}

	bob := domain.Identity{UserID: "s2", Name: "Bob", Role: domain.RoleStudent, SchoolID: "sch1"}
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sessions/" + created.JoinCode + "?token=" + env.token(t, bob)
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected newcomers to be refused once the session started")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %+v", resp)
	}
}
