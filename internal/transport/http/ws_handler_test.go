package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/command"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.Bank{
		"math": {
			ID: "math",
			Questions: []domain.Question{
				{Text: "2 + 2?", Options: []string{"4", "3", "5"}, CorrectOption: 0},
				{Text: "3 * 3?", Options: []string{"9", "6", "12"}, CorrectOption: 0},
			},
		},
	}), time.Minute)
	activations := memory.NewActivationStore()
	results := memory.NewResultStore()
	sessions := memory.NewSessionStore()

	registry := app.NewRegistry(activations, banks)
	engine := app.NewEngine(registry, banks, results, sessions, app.WithRandomizer(app.NewRandomizer(1)))
	reports := app.NewReports(activations, results)
	roles := command.NewStaticRoles(nil, []string{"op"})
	dispatcher := command.NewDispatcher(registry, engine, reports, roles, zerolog.Nop())

	server := httptest.NewServer(NewMux(NewWSHandler(dispatcher, zerolog.Nop()), nil))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?userId=" + user + "&conversationId=chat-" + user
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	readNext(t, conn, "connected")
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	var msg wireMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	return msg.Payload
}

func TestWebSocketQuizFlow(t *testing.T) {
	server := newTestServer(t)

	op := dial(t, server, "op")
	send(t, op, "command", map[string]string{"text": "/activate math 2 1 30"})
	var receipt struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(readNext(t, op, "reply"), &receipt); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !strings.Contains(receipt.Text, "math") {
		t.Fatalf("receipt does not mention the bank: %q", receipt.Text)
	}

	player := dial(t, server, "alice")
	send(t, player, "command", map[string]string{"text": "/begin math"})

	var final domain.FinalScore
	payload := readNext(t, player, "question")
	for i := 0; i < 2; i++ {
		var prompt domain.QuestionPrompt
		if err := json.Unmarshal(payload, &prompt); err != nil {
			t.Fatalf("decode question: %v", err)
		}
		if prompt.Position != i+1 || prompt.Total != 2 {
			t.Fatalf("unexpected position %d/%d", prompt.Position, prompt.Total)
		}
		token := ""
		for _, opt := range prompt.Options {
			if opt.Text == "4" || opt.Text == "9" {
				token = opt.Token
			}
		}
		if token == "" {
			t.Fatalf("correct option missing from %+v", prompt.Options)
		}
		send(t, player, "answer", map[string]string{"token": token})
		if i == 0 {
			payload = readNext(t, player, "question")
			continue
		}
		if err := json.Unmarshal(readNext(t, player, "score"), &final); err != nil {
			t.Fatalf("decode score: %v", err)
		}
	}
	if final.Correct != 2 || final.Total != 2 || final.Percent != 100 || !final.Saved {
		t.Fatalf("unexpected final score %+v", final)
	}

	send(t, player, "command", map[string]string{"text": "/begin math"})
	var failure errorPayload
	if err := json.Unmarshal(readNext(t, player, "error"), &failure); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if failure.Code != domain.Code(domain.ErrAttemptsExhausted) {
		t.Fatalf("expected attempts exhausted, got %+v", failure)
	}
}

func TestWebSocketRefusesOperatorCommandsForParticipants(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "mallory")

	send(t, conn, "command", map[string]string{"text": "/activate math 2 1 30"})
	var failure errorPayload
	if err := json.Unmarshal(readNext(t, conn, "error"), &failure); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if failure.Code != domain.Code(domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %+v", failure)
	}

	send(t, conn, "bogus", nil)
	if err := json.Unmarshal(readNext(t, conn, "error"), &failure); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if failure.Code != "INVALID_ARGUMENT" {
		t.Fatalf("expected invalid argument, got %+v", failure)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/ws?userId=alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer health.Body.Close()
	body, _ := io.ReadAll(health.Body)
	if string(body) != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}
}

func TestEmitStopsWhenWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage, 2)
	done := make(chan struct{})
	push := pusher(send, done)

	if !emit(push, command.Reply{Messages: []string{"one", "two"}}) {
		t.Fatalf("emit must succeed while the writer is alive")
	}

	// The buffer is full and the writer has exited.
	close(done)
	finished := make(chan bool, 1)
	go func() {
		finished <- emit(push, command.Reply{Messages: []string{"a", "b", "c", "d"}})
	}()
	select {
	case ok := <-finished:
		if ok {
			t.Fatalf("emit must report the dead writer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("emit blocked on a dead writer")
	}
}
