package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/domain"
)

// Handler exposes the assessment engine as a JSON API for the surrounding
// platform. Authentication and authorization live in the gateway in front
// of this service.
type Handler struct {
	attempts  *app.AttemptService
	analytics *app.Analytics
	authoring *app.AuthoringService
}

func NewHandler(attempts *app.AttemptService, analytics *app.Analytics, authoring *app.AuthoringService) *Handler {
	return &Handler{attempts: attempts, analytics: analytics, authoring: authoring}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes", h.saveQuiz)
	mux.HandleFunc("DELETE /quizzes/{quizID}", h.deleteQuiz)
	mux.HandleFunc("GET /quizzes/{quizID}/statistics", h.quizStatistics)
	mux.HandleFunc("POST /quizzes/{quizID}/attempts", h.startAttempt)
	mux.HandleFunc("GET /quizzes/{quizID}/attempts/active", h.activeAttempt)
	mux.HandleFunc("GET /attempts/{attemptID}", h.getAttempt)
	mux.HandleFunc("PUT /attempts/{attemptID}/answers/{questionID}", h.submitAnswer)
	mux.HandleFunc("POST /attempts/{attemptID}/finalize", h.finalizeAttempt)
	mux.HandleFunc("POST /attempts/{attemptID}/abandon", h.abandonAttempt)
	mux.HandleFunc("POST /attempts/{attemptID}/answers/{questionID}/grade", h.gradeEssay)
}

func (h *Handler) saveQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz payload")
		return
	}
	if err := h.authoring.SaveQuiz(r.Context(), quiz); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": quiz.ID})
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.authoring.DeleteQuiz(r.Context(), r.PathValue("quizID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quizStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.QuizStatistics(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type startAttemptRequest struct {
	StudentID string `json:"studentId"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "missing studentId")
		return
	}
	attempt, err := h.attempts.StartAttempt(r.Context(), r.PathValue("quizID"), req.StudentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) activeAttempt(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "missing studentId")
		return
	}
	attempt, err := h.attempts.ActiveAttempt(r.Context(), r.PathValue("quizID"), studentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.GetAttempt(r.Context(), r.PathValue("attemptID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type submitAnswerRequest struct {
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	TextAnswer        string   `json:"textAnswer"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	attempt, err := h.attempts.SubmitAnswer(r.Context(), r.PathValue("attemptID"), r.PathValue("questionID"), req.SelectedOptionIDs, req.TextAnswer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) finalizeAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.FinalizeAttempt(r.Context(), r.PathValue("attemptID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) abandonAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.AbandonAttempt(r.Context(), r.PathValue("attemptID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type gradeEssayRequest struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

func (h *Handler) gradeEssay(w http.ResponseWriter, r *http.Request) {
	var req gradeEssayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid grade payload")
		return
	}
	attempt, err := h.attempts.GradeEssay(r.Context(), r.PathValue("attemptID"), r.PathValue("questionID"), req.Score, req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// writeDomainError maps engine error kinds onto HTTP statuses. Everything
// here is a recoverable caller-facing condition, not a server fault.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrAnswerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAttemptInProgress),
		errors.Is(err, domain.ErrAttemptNotActive),
		errors.Is(err, domain.ErrAttemptNotScored),
		errors.Is(err, domain.ErrQuizHasAttempts):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrQuizUnavailable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrNotEssayQuestion),
		domain.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
