package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xbinlabs/mining-rental/internal/model"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/storage"
)

// maxImageBytes caps catalog image uploads at 5 MiB.
const maxImageBytes = 5 << 20

// MachineHandler serves the public catalog and the admin catalog CRUD.
type MachineHandler struct {
	Machines *repository.MachineRepo
	Store    *storage.S3Store
	Log      zerolog.Logger
}

func NewMachineHandler(machines *repository.MachineRepo, store *storage.S3Store, log zerolog.Logger) *MachineHandler {
	return &MachineHandler{Machines: machines, Store: store, Log: log}
}

type machineReq struct {
	Name         string  `json:"name" validate:"required,min=2,max=200"`
	Description  *string `json:"description"`
	Type         string  `json:"type" validate:"required,oneof=asic gpu"`
	Manufacturer *string `json:"manufacturer"`
	Model        *string `json:"model"`

	HashRate         *float64 `json:"hashRate"`
	HashRateUnit     *string  `json:"hashRateUnit"`
	PowerConsumption *float64 `json:"powerConsumption"`
	Algorithm        *string  `json:"algorithm"`
	MiningCoin       *string  `json:"miningCoin"`
	Efficiency       *float64 `json:"efficiency"`

	PricePerHour  float64 `json:"pricePerHour" validate:"gte=0"`
	PricePerDay   float64 `json:"pricePerDay" validate:"gte=0"`
	PricePerWeek  float64 `json:"pricePerWeek" validate:"gte=0"`
	PricePerMonth float64 `json:"pricePerMonth" validate:"gte=0"`

	ProfitPerHour  float64 `json:"profitPerHour" validate:"gte=0"`
	ProfitPerDay   float64 `json:"profitPerDay" validate:"gte=0"`
	ProfitPerWeek  float64 `json:"profitPerWeek" validate:"gte=0"`
	ProfitPerMonth float64 `json:"profitPerMonth" validate:"gte=0"`

	TotalUnits int    `json:"totalUnits" validate:"gte=0"`
	Status     string `json:"status" validate:"omitempty,oneof=available rented maintenance inactive"`
	IsActive   *bool  `json:"isActive"`
	IsFeatured *bool  `json:"isFeatured"`
	SortOrder  int    `json:"sortOrder"`
}

type setStatusReq struct {
	Status string `json:"status" validate:"required,oneof=available rented maintenance inactive"`
}

// machineView is the public projection: available units are computed, the
// raw counters stay internal to the admin view.
type machineView struct {
	model.Machine
	AvailableUnits int `json:"availableUnits"`
}

func viewOf(m model.Machine) machineView {
	return machineView{Machine: m, AvailableUnits: m.AvailableUnits()}
}

func viewsOf(list []model.Machine) []machineView {
	out := make([]machineView, 0, len(list))
	for _, m := range list {
		out = append(out, viewOf(m))
	}
	return out
}

// ----- public -----

// List returns the active catalog.
func (h *MachineHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	machines, err := h.Machines.ListActive(ctx)
	if err != nil {
		return internalError(c, "list machines failed")
	}
	return c.JSON(http.StatusOK, response.OK("Machines", viewsOf(machines)))
}

// Featured returns active machines flagged for the landing page.
func (h *MachineHandler) Featured(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	machines, err := h.Machines.ListFeatured(ctx)
	if err != nil {
		return internalError(c, "list featured machines failed")
	}
	return c.JSON(http.StatusOK, response.OK("Featured machines", viewsOf(machines)))
}

// Get returns one active machine by id.
func (h *MachineHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Machines.GetActiveByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		}
		return internalError(c, "query machine failed")
	}
	return c.JSON(http.StatusOK, response.OK("Machine", viewOf(*m)))
}

// ----- admin -----

// ListAll returns every machine including hidden ones. Optional query
// params isActive, isFeatured, type and status narrow the listing.
func (h *MachineHandler) ListAll(c echo.Context) error {
	var f repository.MachineFilter
	if v := c.QueryParam("isActive"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}
	if v := c.QueryParam("isFeatured"); v != "" {
		featured := v == "true"
		f.IsFeatured = &featured
	}
	f.Type = c.QueryParam("type")
	f.Status = c.QueryParam("status")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	machines, err := h.Machines.ListAll(ctx, f)
	if err != nil {
		return internalError(c, "list machines failed")
	}
	return c.JSON(http.StatusOK, response.OK("Machines", viewsOf(machines)))
}

// Create adds a machine to the catalog.
func (h *MachineHandler) Create(c echo.Context) error {
	var req machineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "MACHINE_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	m := req.toModel()

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Machines.Create(ctx, m); err != nil {
		return internalError(c, "create machine failed")
	}
	return c.JSON(http.StatusCreated, response.OK("Machine created", viewOf(*m)))
}

// Update rewrites a machine's mutable fields. Shrinking capacity below the
// rented count is refused.
func (h *MachineHandler) Update(c echo.Context) error {
	var req machineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "MACHINE_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	m := req.toModel()
	m.ID = c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Machines.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, repository.ErrMachineNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusBadRequest,
				response.Error("Cannot reduce total units below rented units", "MACHINE_002", "wait for rentals to end"))
		}
		return internalError(c, "update machine failed")
	}

	updated, err := h.Machines.GetByID(ctx, m.ID)
	if err != nil {
		return internalError(c, "reload machine failed")
	}
	return c.JSON(http.StatusOK, response.OK("Machine updated", viewOf(*updated)))
}

// Delete removes a machine with no active rentals.
func (h *MachineHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Machines.Delete(ctx, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, repository.ErrMachineNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusBadRequest,
				response.Error("Cannot delete machine with active rentals", "MACHINE_003", "wait for rentals to end"))
		}
		return internalError(c, "delete machine failed")
	}
	return c.JSON(http.StatusOK, response.OK("Machine deleted", nil))
}

// SetStatus changes the operational status.
func (h *MachineHandler) SetStatus(c echo.Context) error {
	var req setStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Invalid request body", "MACHINE_001", "malformed JSON"))
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Machines.SetStatus(ctx, c.Param("id"), req.Status); err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		}
		return internalError(c, "set machine status failed")
	}
	return c.JSON(http.StatusOK, response.OK("Status updated", echo.Map{"id": c.Param("id"), "status": req.Status}))
}

// ToggleActive flips catalog visibility.
func (h *MachineHandler) ToggleActive(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	active, err := h.Machines.ToggleActive(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		}
		return internalError(c, "toggle active failed")
	}
	return c.JSON(http.StatusOK, response.OK("Visibility updated", echo.Map{"id": c.Param("id"), "isActive": active}))
}

// ToggleFeatured flips the landing-page flag.
func (h *MachineHandler) ToggleFeatured(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	featured, err := h.Machines.ToggleFeatured(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		}
		return internalError(c, "toggle featured failed")
	}
	return c.JSON(http.StatusOK, response.OK("Featured updated", echo.Map{"id": c.Param("id"), "isFeatured": featured}))
}

// UploadImage stores a catalog image in object storage and points the
// machine at the public URL. The previous image, if any, is removed.
func (h *MachineHandler) UploadImage(c echo.Context) error {
	if h.Store == nil {
		return c.JSON(http.StatusServiceUnavailable,
			response.Error("Image uploads are not configured", "MACHINE_001", "object storage disabled"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	machine, err := h.Machines.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error("Mining machine not found", "MACHINE_001", "no such machine"))
		}
		return internalError(c, "query machine failed")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error("Image file is required", "MACHINE_001", "attach a multipart field named image"))
	}
	if fh.Size > maxImageBytes {
		return c.JSON(http.StatusBadRequest,
			response.Error("Image too large", "MACHINE_001", "maximum size is 5 MB"))
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return c.JSON(http.StatusBadRequest,
			response.Error("Unsupported file type", "MACHINE_001", "only image uploads are accepted"))
	}

	src, err := fh.Open()
	if err != nil {
		return internalError(c, "open upload failed")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
	if err != nil {
		return internalError(c, "read upload failed")
	}

	url, err := h.Store.Upload(data, fh.Filename, "machines", contentType)
	if err != nil {
		h.Log.Error().Err(err).Str("machine_id", machine.ID).Msg("image upload failed")
		return internalError(c, "store image failed")
	}
	if err := h.Machines.SetImage(ctx, machine.ID, url); err != nil {
		return internalError(c, "save image url failed")
	}
	if machine.Image != nil && *machine.Image != "" {
		if err := h.Store.Delete(*machine.Image); err != nil {
			h.Log.Warn().Err(err).Str("machine_id", machine.ID).Msg("delete previous image failed")
		}
	}
	return c.JSON(http.StatusOK, response.OK("Image uploaded", echo.Map{"id": machine.ID, "image": url}))
}

func (r *machineReq) toModel() *model.Machine {
	status := r.Status
	if status == "" {
		status = model.MachineAvailable
	}
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}
	isFeatured := false
	if r.IsFeatured != nil {
		isFeatured = *r.IsFeatured
	}
	return &model.Machine{
		Name:             r.Name,
		Description:      r.Description,
		Type:             r.Type,
		Manufacturer:     r.Manufacturer,
		Model:            r.Model,
		HashRate:         r.HashRate,
		HashRateUnit:     r.HashRateUnit,
		PowerConsumption: r.PowerConsumption,
		Algorithm:        r.Algorithm,
		MiningCoin:       r.MiningCoin,
		Efficiency:       r.Efficiency,
		PricePerHour:     r.PricePerHour,
		PricePerDay:      r.PricePerDay,
		PricePerWeek:     r.PricePerWeek,
		PricePerMonth:    r.PricePerMonth,
		ProfitPerHour:    r.ProfitPerHour,
		ProfitPerDay:     r.ProfitPerDay,
		ProfitPerWeek:    r.ProfitPerWeek,
		ProfitPerMonth:   r.ProfitPerMonth,
		TotalUnits:       r.TotalUnits,
		Status:           status,
		IsActive:         isActive,
		IsFeatured:       isFeatured,
		SortOrder:        r.SortOrder,
	}
}
