package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"assessment-engine/internal/command"
	"assessment-engine/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	dispatcher *command.Dispatcher
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewWSHandler(dispatcher *command.Dispatcher, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type commandPayload struct {
	Text string `json:"text"`
}

type answerPayload struct {
	Token string `json:"token"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type replyPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and relays chat commands to the dispatcher.
// One connection is one conversation of one participant.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor := command.Actor{
		ID:             r.URL.Query().Get("userId"),
		ConversationID: r.URL.Query().Get("conversationId"),
	}
	if actor.ID == "" || actor.ConversationID == "" {
		http.Error(w, "missing userId or conversationId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("user_id", actor.ID).Str("conversation_id", actor.ConversationID).Logger()
	ctx := r.Context()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	// Single writer; gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	push := pusher(send, writerDone)

	push(outboundMessage{Type: "connected", Payload: replyPayload{Text: command.HelpText}})
	if resumed, err := h.dispatcher.Resume(ctx, actor); err == nil {
		emit(push, resumed)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var (
			reply command.Reply
			err   error
		)
		switch inbound.Type {
		case "command":
			var payload commandPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("INVALID_ARGUMENT", "invalid command payload"))
				continue
			}
			reply, err = h.dispatcher.Handle(ctx, actor, payload.Text)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("INVALID_ARGUMENT", "invalid answer payload"))
				continue
			}
			reply, err = h.dispatcher.Answer(ctx, actor, payload.Token)
		case "cancel":
			reply, err = h.dispatcher.Cancel(ctx, actor)
		default:
			push(errorMessage("INVALID_ARGUMENT", "unsupported message type"))
			continue
		}

		if !emit(push, reply) {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			if domain.Code(err) == "INTERNAL" || errors.Is(err, domain.ErrPersistenceFailure) {
				log.Error().Err(err).Str("type", inbound.Type).Msg("request failed")
			}
			if !push(errorMessage(domain.Code(err), command.Explain(err))) {
				break
			}
		}
	}

	close(send)
	<-writerDone
}

// pusher queues messages for the writer and gives up once done is closed,
// so a dead socket never blocks the reader.
func pusher(send chan<- outboundMessage, done <-chan struct{}) func(outboundMessage) bool {
	return func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}
}

// emit writes the structured parts of a reply, falling back to plain text.
// It reports false once the writer is gone.
func emit(push func(outboundMessage) bool, reply command.Reply) bool {
	switch {
	case reply.Final != nil:
		return push(outboundMessage{Type: "score", Payload: reply.Final})
	case reply.Question != nil:
		return push(outboundMessage{Type: "question", Payload: reply.Question})
	}
	for _, text := range reply.Messages {
		if !push(outboundMessage{Type: "reply", Payload: replyPayload{Text: text}}) {
			return false
		}
	}
	return true
}

func errorMessage(code, message string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Code: code, Message: message}}
}
