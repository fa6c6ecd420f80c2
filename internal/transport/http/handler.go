package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/parser"
)

// Handler exposes the session engine and the ingestion parser over JSON.
// Authentication and role checks happen upstream; the participant ID arriving
// here is already verified.
type Handler struct {
	engine *app.SessionEngine
	parser *parser.Parser
}

func NewHandler(engine *app.SessionEngine, p *parser.Parser) *Handler {
	return &Handler{engine: engine, parser: p}
}

// Register wires the JSON endpoints onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/sets/start", h.handleStart)
	mux.HandleFunc("/api/sets/time", h.handleCheckTime)
	mux.HandleFunc("/api/sets/submit", h.handleSubmit)
	mux.HandleFunc("/api/sets/force-submit", h.handleForceSubmit)
	mux.HandleFunc("/api/sets/toggle", h.handleToggle)
	mux.HandleFunc("/api/questions/parse", h.handleParse)
	mux.HandleFunc("/api/attempts", h.handleHistory)
}

type startRequest struct {
	ParticipantID string `json:"participantId"`
	SetID         string `json:"setId"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ParticipantID == "" || req.SetID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId or setId")
		return
	}
	result, err := h.engine.Start(r.Context(), req.ParticipantID, req.SetID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCheckTime(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	setID := r.URL.Query().Get("setId")
	if participantID == "" || setID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId or setId")
		return
	}
	status, err := h.engine.CheckTime(r.Context(), participantID, setID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type submitRequest struct {
	ParticipantID    string     `json:"participantId"`
	SetID            string     `json:"setId"`
	Answers          []string   `json:"answers"`
	TimeTakenSeconds *int       `json:"timeTakenSeconds"`
	Timings          []*float64 `json:"timings"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.engine.Submit(r.Context(), req.ParticipantID, req.SetID, req.Answers, req.TimeTakenSeconds, req.Timings)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type forceSubmitRequest struct {
	ParticipantID  string `json:"participantId"`
	SetID          string `json:"setId"`
	Reason         string `json:"reason"`
	ElapsedSeconds *int   `json:"elapsedSeconds"`
}

// handleForceSubmit closes an attempt after a timeout or tab switch. These
// calls are best effort: a student must never see a raw internal error from
// an auto-submission, so failures are logged and the response still reads
// "quiz auto-submitted" — including when the attempt was already completed.
func (h *Handler) handleForceSubmit(w http.ResponseWriter, r *http.Request) {
	var req forceSubmitRequest
	if !decode(w, r, &req) {
		return
	}
	reason := domain.ForceSubmitReason(req.Reason)
	if reason != domain.ForceTabSwitch {
		reason = domain.ForceTimeout
	}
	if _, err := h.engine.ForceSubmit(r.Context(), req.ParticipantID, req.SetID, reason, req.ElapsedSeconds); err != nil {
		log.Printf("force submit (%s) for participant=%s set=%s: %v", reason, req.ParticipantID, req.SetID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "quiz auto-submitted"})
}

type toggleRequest struct {
	SetID  string `json:"setId"`
	Enable bool   `json:"enable"`
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.ToggleSet(r.Context(), req.SetID, req.Enable); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Set status updated"})
}

type parseRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type parseResponse struct {
	Questions []domain.Question `json:"questions"`
	Dropped   int               `json:"dropped"`
}

func (h *Handler) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decode(w, r, &req) {
		return
	}
	questions, dropped := h.parser.Parse(req.Text, req.Category)
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, parseResponse{Questions: questions, Dropped: dropped})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId")
		return
	}
	attempts, err := h.engine.History(r.Context(), participantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	type historyEntry struct {
		SetID        string `json:"setId"`
		Score        int    `json:"score"`
		Percentage   int    `json:"percentage"`
		TimeTaken    string `json:"timeTaken"`
		CompletedAt  string `json:"completedAt"`
		SubmitReason string `json:"submitReason,omitempty"`
	}
	entries := make([]historyEntry, 0, len(attempts))
	for _, a := range attempts {
		entries = append(entries, historyEntry{
			SetID:        a.SetID,
			Score:        a.Score,
			Percentage:   a.Percentage,
			TimeTaken:    formatDuration(a.TimeTakenSeconds),
			CompletedAt:  a.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"),
			SubmitReason: string(a.SubmitReason),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSetNotFound), errors.Is(err, domain.ErrNoOpenAttempt):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSetInactive), errors.Is(err, domain.ErrAttemptNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNoQuestions):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
