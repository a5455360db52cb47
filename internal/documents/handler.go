package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"study-backend/internal/pipeline"
	"study-backend/internal/shared/server/middleware"
	"study-backend/internal/shared/server/respond"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the pipeline.
type Handler struct {
	Svc *pipeline.Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents/:userId", h.list)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.Svc.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation_failed", "File exceeds the upload limit", gin.H{"fileSize": "file exceeds " + strconv.FormatInt(limit, 10) + " bytes"})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_failed", "No file uploaded", gin.H{"file": "file is required"})
		return
	}

	userID, ok := parseID(c.PostForm("userId"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid user ID", gin.H{"userId": "must be a positive integer"})
		return
	}
	middleware.SetUserID(c, userID)

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), pipeline.UploadInput{
		File:      file,
		MediaType: fileHeader.Header.Get("Content-Type"),
		FileName:  fileHeader.Filename,
		SizeBytes: fileHeader.Size,
		OwnerID:   userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	middleware.SetDocumentID(c, doc.ID)
	respond.Created(c, doc)
}

func (h *Handler) list(c *gin.Context) {
	userID, ok := parseID(c.Param("userId"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid user ID", nil)
		return
	}
	middleware.SetUserID(c, userID)

	docs, err := h.Svc.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, docs)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid document ID", nil)
		return
	}
	middleware.SetDocumentID(c, id)

	if _, err := h.Svc.DeleteDocument(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"message": "Document deleted successfully"})
}

func writeError(c *gin.Context, err error) {
	var fe *pipeline.FieldError
	switch {
	case errors.As(err, &fe):
		respond.Error(c, http.StatusBadRequest, "validation_failed", "Invalid upload", fe.Fields)
	case errors.Is(err, pipeline.ErrUnsupportedMediaType):
		respond.Error(c, http.StatusBadRequest, "unsupported_media_type", "Unsupported file type. Please upload PDF, PNG or JPEG files.", nil)
	case errors.Is(err, pipeline.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.Is(err, pipeline.ErrExtractionFailed):
		respond.Error(c, http.StatusInternalServerError, "extraction_failed", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to process document", nil)
	}
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
