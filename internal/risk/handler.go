package risk

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablevine/booking-risk/pkg/common"
	"github.com/tablevine/booking-risk/pkg/pagination"
	"github.com/tablevine/booking-risk/pkg/security"
)

const maxNotesLength = 2000

const historyLookback = 90 * 24 * time.Hour

// Handler handles HTTP requests for risk assessment
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Assess runs a full four-channel assessment over a booking submission
// POST /api/v1/risk/assess
func (h *Handler) Assess(c *gin.Context) {
	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "email, phone and name are required")
		return
	}

	// Notes are free text and end up in the review queue, scrub them.
	sub.Notes = security.SanitizeInput(sub.Notes, maxNotesLength)
	if sub.IPAddress == "" {
		sub.IPAddress = c.ClientIP()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}

	result, err := h.service.Assess(c.Request.Context(), &sub)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// AssessEmail scores a single email address
// POST /api/v1/risk/assess/email
func (h *Handler) AssessEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "email is required")
		return
	}

	common.SuccessResponse(c, h.service.AssessEmail(c.Request.Context(), req.Email))
}

// AssessPhone scores a single phone number
// POST /api/v1/risk/assess/phone
func (h *Handler) AssessPhone(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "phone is required")
		return
	}

	common.SuccessResponse(c, h.service.AssessPhone(req.Phone))
}

// AssessName scores a single guest name
// POST /api/v1/risk/assess/name
func (h *Handler) AssessName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "name is required")
		return
	}

	common.SuccessResponse(c, h.service.AssessName(req.Name))
}

// RecordFailedAttempt bumps the failed-attempt counter for a contact
// POST /api/v1/risk/failed-attempts
func (h *Handler) RecordFailedAttempt(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Phone string `json:"phone" binding:"required"`
		IP    string `json:"ip_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "email and phone are required")
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}

	if err := h.service.RecordFailedAttempt(c.Request.Context(), req.Email, req.Phone, req.IP); err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to record attempt")
		return
	}

	common.SuccessResponse(c, gin.H{"recorded": true})
}

// ListFlagged returns flagged assessments for the review queue
// GET /api/v1/risk/assessments/flagged?limit=20&offset=0
func (h *Handler) ListFlagged(c *gin.Context) {
	params := pagination.ParseParams(c)

	assessments, total, err := h.service.ListFlagged(c.Request.Context(), params.Limit, params.Offset)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list flagged assessments")
		return
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, gin.H{"assessments": assessments}, meta)
}

// GetAssessment returns a single persisted assessment
// GET /api/v1/risk/assessments/:id
func (h *Handler) GetAssessment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid assessment id")
		return
	}

	assessment, err := h.service.GetAssessment(c.Request.Context(), id)
	if err != nil {
		if err == pgx.ErrNoRows {
			common.ErrorResponse(c, http.StatusNotFound, "assessment not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get assessment")
		return
	}

	common.SuccessResponse(c, assessment)
}

// ContactHistory returns a contact's booking history for manual review
// GET /api/v1/risk/history?email=a@b.com&phone=%2B12025551234
func (h *Handler) ContactHistory(c *gin.Context) {
	email := c.Query("email")
	phone := c.Query("phone")
	if email == "" && phone == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "email or phone is required")
		return
	}

	records, err := h.service.ContactHistory(c.Request.Context(), email, phone, historyLookback)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get contact history")
		return
	}

	common.SuccessResponse(c, gin.H{"bookings": records})
}
