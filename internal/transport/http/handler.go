package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Handler exposes the quiz use cases over JSON.
type Handler struct {
	service *app.QuizService
	auth    *AdminAuth
}

func NewHandler(service *app.QuizService, auth *AdminAuth) *Handler {
	return &Handler{service: service, auth: auth}
}

type loginRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type quizInfo struct {
	DurationSeconds int64 `json:"durationSeconds"`
}

type loginResponse struct {
	Success     bool               `json:"success"`
	Participant domain.Participant `json:"participant"`
	Quiz        quizInfo           `json:"quiz"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.service.Login(c.Request.Context(), req.ID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Success:     true,
		Participant: p,
		Quiz:        quizInfo{DurationSeconds: int64(h.service.QuizDuration() / time.Second)},
	})
}

type checkResponse struct {
	Exists bool          `json:"exists"`
	Status domain.Status `json:"status,omitempty"`
}

func (h *Handler) CheckParticipant(c *gin.Context) {
	status, exists, err := h.service.CheckParticipant(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkResponse{Exists: exists, Status: status})
}

func (h *Handler) Questions(c *gin.Context) {
	questions, err := h.service.GetQuestions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

type submitRequest struct {
	ParticipantID string            `json:"participantId"`
	Answers       map[string]string `json:"answers"`
	Timeout       bool              `json:"timeout"`
	// Status "timeout" is the older way clients flagged an expired countdown.
	Status string `json:"status"`
}

type submitResponse struct {
	Success bool `json:"success"`
	domain.SubmitResult
}

func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if !bindJSON(c, &req) {
		return
	}
	isTimeout := req.Timeout || strings.EqualFold(req.Status, string(domain.StatusTimeout))
	res, err := h.service.Submit(c.Request.Context(), req.ParticipantID, req.Answers, isTimeout)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponse{Success: true, SubmitResult: res})
}

type participantRequest struct {
	ParticipantID string `json:"participantId"`
}

func (h *Handler) Disqualify(c *gin.Context) {
	var req participantRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.Disqualify(c.Request.Context(), req.ParticipantID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "participant disqualified"})
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, expiresAt, err := h.auth.Issue(req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) Participants(c *gin.Context) {
	participants, err := h.service.ListParticipants(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	c.JSON(http.StatusOK, participants)
}

func (h *Handler) Standings(c *gin.Context) {
	standings, err := h.service.Standings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}
