package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/gorilla/websocket"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	env := newTestEnv(t, mathQuestions(), WSConfig{QuestionTimeout: time.Minute})

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&categories=math"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	session := readNext(conn, t, "session")
	if size := number(t, session.Payload["size"]); size != 3 {
		t.Fatalf("expected an under-filled session of 3, got %d", size)
	}

	// correct, wrong, skipped
	for i, action := range []string{"ok", "no", "skip"} {
		q := readNext(conn, t, "question")
		if idx := number(t, q.Payload["index"]); idx != i {
			t.Fatalf("expected question %d, got %d", i, idx)
		}
		for _, opt := range q.Payload["options"].([]any) {
			if _, leaked := opt.(map[string]any)["correct"]; leaked {
				t.Fatalf("option correctness must not be sent to the client")
			}
		}
		if action == "skip" {
			send(conn, t, "skip", map[string]any{"index": i})
			readNext(conn, t, "skipped")
			continue
		}
		send(conn, t, "answer", map[string]any{"index": i, "optionId": action})
		// duplicate tap is ignored
		send(conn, t, "answer", map[string]any{"index": i, "optionId": action})
		ev := readNext(conn, t, "delta")
		delta := ev.Payload["delta"].(map[string]any)
		want := "correct"
		if action == "no" {
			want = "wrong"
		}
		if delta["outcome"] != want {
			t.Fatalf("expected %s delta, got %v", want, delta)
		}
	}

	summary := readNext(conn, t, "summary")
	if got := number(t, summary.Payload["balance"]); got != 1 {
		t.Fatalf("expected balance 1, got %d", got)
	}
	counts := summary.Payload["summary"].(map[string]any)
	if number(t, counts["correct"]) != 1 || number(t, counts["wrong"]) != 1 || number(t, counts["skipped"]) != 1 {
		t.Fatalf("unexpected summary %v", counts)
	}

	balance, err := env.ledger.Balance(context.Background(), "u1")
	if err != nil || balance != 1 {
		t.Fatalf("expected ledger balance 1, got %d (%v)", balance, err)
	}
}

func TestWebSocketQuestionTimerExpires(t *testing.T) {
	env := newTestEnv(t, mathQuestions()[:1], WSConfig{QuestionTimeout: 50 * time.Millisecond})

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&categories=math"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "session")
	readNext(conn, t, "question")
	readNext(conn, t, "expired")
	summary := readNext(conn, t, "summary")
	counts := summary.Payload["summary"].(map[string]any)
	if number(t, counts["skipped"]) != 1 {
		t.Fatalf("expected the expired question to count as skipped, got %v", counts)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	env := newTestEnv(t, mathQuestions(), WSConfig{})

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("categories=math"), nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
}

func TestWebSocketResumeAfterDisconnect(t *testing.T) {
	env := newTestEnv(t, mathQuestions(), WSConfig{QuestionTimeout: time.Minute, ResumeGrace: time.Minute})

	first, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&categories=math"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	session := readNext(first, t, "session")
	sessionID := session.Payload["sessionId"].(string)
	readNext(first, t, "question")

	// a second connection cannot drive the same session
	busy, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&sessionId="+sessionID), nil)
	if err != nil {
		t.Fatalf("dial busy: %v", err)
	}
	readNext(busy, t, "error")
	busy.Close()

	first.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&sessionId="+sessionID), nil)
		if err != nil {
			t.Fatalf("dial resume: %v", err)
		}
		msg := readNext(conn, t, "")
		if msg.Type == "session" {
			if msg.Payload["sessionId"] != sessionID {
				t.Fatalf("resumed a different session: %v", msg.Payload)
			}
			q := readNext(conn, t, "question")
			if idx := number(t, q.Payload["index"]); idx != 0 {
				t.Fatalf("expected to resume at index 0, got %d", idx)
			}
			conn.Close()
			return
		}
		conn.Close()
		if time.Now().After(deadline) {
			t.Fatalf("session was never released: last message %v", msg)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWebSocketAbandonsAfterGrace(t *testing.T) {
	env := newTestEnv(t, mathQuestions(), WSConfig{QuestionTimeout: time.Minute, ResumeGrace: 20 * time.Millisecond})

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("userId=u1&categories=math"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	session := readNext(conn, t, "session")
	sessionID := session.Payload["sessionId"].(string)
	readNext(conn, t, "question")
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := env.quiz.Session(sessionID, "u1")
		if errors.Is(err, domain.ErrSessionNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still live after grace period")
		}
		time.Sleep(10 * time.Millisecond)
	}

	balance, _ := env.ledger.Balance(context.Background(), "u1")
	if balance != 0 {
		t.Fatalf("abandoned session must not settle, balance %d", balance)
	}
}
