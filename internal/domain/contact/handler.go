package contact

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/pkg/response"
)

// Handler exposes the contact record store over HTTP.
type Handler struct {
	service *Service
	hub     *Hub
	tokens  *jwt.Service
	log     *zap.Logger
}

func NewHandler(service *Service, hub *Hub, tokens *jwt.Service, log *zap.Logger) *Handler {
	return &Handler{service: service, hub: hub, tokens: tokens, log: log.Named("contact_handler")}
}

// List handles GET /contacts
// @Summary List contacts
// @Tags Contacts
// @Param filter query string false "Case-insensitive name substring"
// @Param sort query string false "Sort field" default(created_at)
// @Param dir query string false "asc or desc" default(desc)
// @Param page query int false "Zero-based page index" default(0)
// @Param page_size query int false "Page size" default(10)
// @Router /contacts [get]
func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid query parameters")
		return
	}

	result, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidSortField) {
			response.Error(c, http.StatusBadRequest, "INVALID_SORT", fmt.Sprintf("Cannot sort by %q", q.SortKey))
			return
		}
		h.internalError(c, "list contacts", err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Get handles GET /contacts/:id
func (h *Handler) Get(c *gin.Context) {
	contact, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get contact", err)
		return
	}
	response.Success(c, http.StatusOK, contact)
}

// Create handles POST /contacts
// @Summary Create a contact
// @Tags Contacts
// @Accept json
// @Param request body CreateContactRequest true "Contact"
// @Success 201
// @Failure 400,422,500
// @Router /contacts [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	req.Normalize()
	if fieldErrors := req.Validate(); fieldErrors != nil {
		response.ValidationError(c, http.StatusUnprocessableEntity, fieldErrors)
		return
	}

	contact, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create contact", err)
		return
	}
	response.Success(c, http.StatusCreated, contact)
}

// CreateBatch handles POST /contacts/batch
// @Summary Create several contacts at once
// @Tags Contacts
// @Accept json
// @Param request body BatchCreateRequest true "Contacts"
// @Success 201
// @Failure 400,422,500
// @Router /contacts/batch [post]
func (h *Handler) CreateBatch(c *gin.Context) {
	var req BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if len(req.Contacts) == 0 {
		response.ValidationError(c, http.StatusUnprocessableEntity, map[string]string{
			"contacts": "Please add at least one user.",
		})
		return
	}
	if len(req.Contacts) > MaxBatchSize {
		response.ValidationError(c, http.StatusUnprocessableEntity, map[string]string{
			"contacts": fmt.Sprintf("At most %d users can be created at once.", MaxBatchSize),
		})
		return
	}

	fieldErrors := map[string]string{}
	for i := range req.Contacts {
		req.Contacts[i].Normalize()
		for field, msg := range req.Contacts[i].Validate() {
			fieldErrors[fmt.Sprintf("contacts[%d].%s", i, field)] = msg
		}
	}
	if len(fieldErrors) > 0 {
		response.ValidationError(c, http.StatusUnprocessableEntity, fieldErrors)
		return
	}

	contacts, err := h.service.CreateBatch(c.Request.Context(), req.Contacts)
	if err != nil {
		h.writeError(c, "create contacts", err)
		return
	}
	response.Success(c, http.StatusCreated, BatchResult{Items: contacts, Count: len(contacts)})
}

// Update handles PATCH /contacts/:id
// @Summary Partially update a contact
// @Tags Contacts
// @Accept json
// @Param id path string true "Contact ID"
// @Param request body UpdateContactRequest true "Changed fields only"
// @Router /contacts/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	req.Normalize()
	if fieldErrors := req.Validate(); fieldErrors != nil {
		response.ValidationError(c, http.StatusUnprocessableEntity, fieldErrors)
		return
	}

	contact, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, "update contact", err)
		return
	}
	response.Success(c, http.StatusOK, contact)
}

// Delete handles DELETE /contacts/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "delete contact", err)
		return
	}
	response.Message(c, http.StatusOK, "deleted")
}

// Watch handles GET /contacts/ws?token=JWT
//
// Browsers cannot set headers on websocket requests, so the bearer token
// travels in the query string.
func (h *Handler) Watch(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	h.log.Debug("change feed subscriber connected", zap.String("subject", claims.Subject))
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrContactNotFound):
		response.Error(c, http.StatusNotFound, "CONTACT_NOT_FOUND", "Contact not found")
	case errors.Is(err, ErrNothingToUpdate):
		response.Error(c, http.StatusBadRequest, "NOTHING_TO_UPDATE", "Request contains no updatable fields")
	case errors.Is(err, ErrConstraint):
		response.Error(c, http.StatusUnprocessableEntity, "CONSTRAINT_VIOLATION", "Contact violates a table constraint")
	case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrBatchTooLarge):
		response.Error(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	default:
		h.internalError(c, op, err)
	}
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+op)
}
