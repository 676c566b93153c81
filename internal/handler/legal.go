package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
)

// LegalHandler serves legal documents: public reads by type, admin upserts.
type LegalHandler struct {
	Legal *repository.LegalRepo
}

func NewLegalHandler(legal *repository.LegalRepo) *LegalHandler {
	return &LegalHandler{Legal: legal}
}

type legalReq struct {
	Title   string `json:"title" validate:"required,min=2,max=200"`
	Content string `json:"content" validate:"required,min=10"`
}

// Get returns the current document for a type.
func (h *LegalHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	doc, err := h.Legal.GetByType(ctx, c.Param("type"))
	if err != nil {
		if errors.Is(err, repository.ErrLegalNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Document not found", "LEGAL_001", "no such document type"))
		}
		return internalError(c, "query document failed")
	}
	return c.JSON(http.StatusOK, response.OK("Document", doc))
}

// List returns all documents for the admin overview.
func (h *LegalHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	docs, err := h.Legal.List(ctx)
	if err != nil {
		return internalError(c, "list documents failed")
	}
	return c.JSON(http.StatusOK, response.OK("Documents", docs))
}

// Upsert creates or replaces the document for a type, bumping its version.
func (h *LegalHandler) Upsert(c echo.Context) error {
	var req legalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "LEGAL_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	doc, err := h.Legal.Upsert(ctx, c.Param("type"), req.Title, req.Content)
	if err != nil {
		return internalError(c, "save document failed")
	}
	return c.JSON(http.StatusOK, response.OK("Document saved", doc))
}

// Delete removes a document type.
func (h *LegalHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Legal.Delete(ctx, c.Param("type")); err != nil {
		if errors.Is(err, repository.ErrLegalNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Document not found", "LEGAL_001", "no such document type"))
		}
		return internalError(c, "delete document failed")
	}
	return c.JSON(http.StatusOK, response.OK("Document deleted", nil))
}
