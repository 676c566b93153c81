package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
)

// ContactHandler serves the public contact form and the admin inbox.
type ContactHandler struct {
	Contacts *repository.ContactRepo
}

func NewContactHandler(contacts *repository.ContactRepo) *ContactHandler {
	return &ContactHandler{Contacts: contacts}
}

type contactReq struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=2,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

type contactStatusReq struct {
	Status string `json:"status" validate:"required,oneof=new read replied archived"`
}

// Submit stores a contact-form entry. The client IP and user agent are
// captured for abuse triage.
func (h *ContactHandler) Submit(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "CONTACT_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ip := c.RealIP()
	ua := c.Request().UserAgent()
	sub := &model.ContactSubmission{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Status:  model.ContactNew,
	}
	if ip != "" {
		sub.IPAddress = &ip
	}
	if ua != "" {
		sub.UserAgent = &ua
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Contacts.Create(ctx, sub); err != nil {
		return internalError(c, "store submission failed")
	}
	return c.JSON(http.StatusCreated, response.OK("Thank you for contacting us", echo.Map{"id": sub.ID}))
}

// ----- admin -----

// List returns a page of submissions, optionally filtered by status.
func (h *ContactHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && !model.ValidContactStatus(status) {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid status filter", "CONTACT_001", "use new, read, replied or archived"))
	}
	limit, offset := pagination(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	subs, err := h.Contacts.List(ctx, status, limit, offset)
	if err != nil {
		return internalError(c, "list submissions failed")
	}
	unread, err := h.Contacts.CountNew(ctx)
	if err != nil {
		return internalError(c, "count new submissions failed")
	}
	return c.JSON(http.StatusOK, response.OK("Submissions", echo.Map{
		"items":    subs,
		"newCount": unread,
	}))
}

// Get returns one submission and marks it read if it was new.
func (h *ContactHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sub, err := h.Contacts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Submission not found", "CONTACT_001", "no such submission"))
		}
		return internalError(c, "query submission failed")
	}
	if sub.Status == model.ContactNew {
		if err := h.Contacts.SetStatus(ctx, sub.ID, model.ContactRead); err == nil {
			sub.Status = model.ContactRead
		}
	}
	return c.JSON(http.StatusOK, response.OK("Submission", sub))
}

// SetStatus moves a submission through the triage flow.
func (h *ContactHandler) SetStatus(c echo.Context) error {
	var req contactStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "CONTACT_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Contacts.SetStatus(ctx, c.Param("id"), req.Status); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Submission not found", "CONTACT_001", "no such submission"))
		}
		return internalError(c, "update status failed")
	}
	return c.JSON(http.StatusOK, response.OK("Status updated", echo.Map{"id": c.Param("id"), "status": req.Status}))
}

// Delete removes a submission from the inbox.
func (h *ContactHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Contacts.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Submission not found", "CONTACT_001", "no such submission"))
		}
		return internalError(c, "delete submission failed")
	}
	return c.JSON(http.StatusOK, response.OK("Submission deleted", echo.Map{"id": c.Param("id")}))
}
