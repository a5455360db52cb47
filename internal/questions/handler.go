package questions

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"study-backend/internal/pipeline"
	"study-backend/internal/shared/server/middleware"
	"study-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *pipeline.Service
}

func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/questions/generate", h.generate)
	rg.GET("/questions/:documentId", h.list)
}

// number accepts 3 or "3".
type number struct {
	Value int64
	Set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.New("must be an integer")
	}
	n.Value, n.Set = v, true
	return nil
}

type generateRequest struct {
	DocumentID number `json:"documentId"`
	Count      number `json:"count"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid request body", nil)
		return
	}
	if !req.DocumentID.Set || req.DocumentID.Value <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Document ID is required", gin.H{"documentId": "must be a positive integer"})
		return
	}
	middleware.SetDocumentID(c, req.DocumentID.Value)

	count := 0
	if req.Count.Set {
		count = int(min(max(req.Count.Value, -1), int64(pipeline.MaxQuestionCount+1)))
	}

	questions, err := h.Svc.GenerateQuestions(c.Request.Context(), req.DocumentID.Value, count)
	if err != nil {
		var fe *pipeline.FieldError
		switch {
		case errors.As(err, &fe):
			respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid request", fe.Fields)
		case errors.Is(err, pipeline.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
		case errors.Is(err, pipeline.ErrGenerationFailed):
			respond.Error(c, http.StatusInternalServerError, "generation_failed", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to generate questions", nil)
		}
		return
	}
	respond.Created(c, questions)
}

func (h *Handler) list(c *gin.Context) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("documentId")), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid document ID", nil)
		return
	}
	middleware.SetDocumentID(c, id)

	questions, err := h.Svc.ListQuestions(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch questions", nil)
		return
	}
	respond.OK(c, questions)
}
