package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// TimerHandler pushes countdown ticks for an open attempt over a websocket
// and fires the timeout force-submit when the deadline passes. This is the
// boundary-layer polling loop the engine deliberately does not own: with no
// connected client, an expired attempt simply waits for its next contact.
type TimerHandler struct {
	engine   *app.SessionEngine
	upgrader websocket.Upgrader
	interval time.Duration
}

func NewTimerHandler(engine *app.SessionEngine) *TimerHandler {
	return &TimerHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: time.Second,
	}
}

type timerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeTimer upgrades the request and streams TimeStatus payloads until the
// attempt expires, completes, or the client disconnects.
func (h *TimerHandler) ServeTimer(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	setID := r.URL.Query().Get("setId")
	if participantID == "" || setID == "" {
		http.Error(w, "missing participantId or setId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if stop := h.tick(r.Context(), conn, participantID, setID); stop {
			return
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}

// tick sends one countdown update. On expiry it force-submits and tells the
// client the quiz was auto-submitted; the submission error path is swallowed
// here because the attempt may already have been completed by an explicit
// submit racing the timer.
func (h *TimerHandler) tick(ctx context.Context, conn *websocket.Conn, participantID, setID string) bool {
	status, err := h.engine.CheckTime(ctx, participantID, setID)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenAttempt) {
			_ = conn.WriteJSON(timerMessage{Type: "closed", Payload: map[string]string{"message": "no active quiz"}})
		} else {
			log.Printf("ws timer check: %v", err)
		}
		return true
	}

	if err := conn.WriteJSON(timerMessage{Type: "time", Payload: status}); err != nil {
		return true
	}
	if !status.TimeUp {
		return false
	}

	if _, err := h.engine.ForceSubmit(ctx, participantID, setID, domain.ForceTimeout, nil); err != nil {
		log.Printf("ws timer force submit: %v", err)
	}
	_ = conn.WriteJSON(timerMessage{Type: "autoSubmitted", Payload: map[string]string{"message": "quiz auto-submitted"}})
	return true
}
