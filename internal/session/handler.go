package session

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/heyito/ito-sub003/internal/dto"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/labstack/echo/v4"
)

// DeviceSelector lists and switches microphones on the recorder.
type DeviceSelector interface {
	ListDevices(ctx context.Context) ([]string, error)
	Device() string
	SetDevice(name string)
}

type Handler struct {
	controller *Controller
	devices    DeviceSelector
	logger     *slog.Logger
}

func NewHandler(controller *Controller, devices DeviceSelector, logger *slog.Logger) *Handler {
	return &Handler{
		controller: controller,
		devices:    devices,
		logger:     logger.With("handler", "session"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Status)
	g.POST("/cancel", h.Cancel)
	g.GET("/devices", h.ListDevices)
	g.PUT("/devices", h.SelectDevice)
}

func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.RecordingStatusResponse{
		State:     string(h.controller.State()),
		SessionID: h.controller.SessionID(),
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	h.controller.Cancel()
	return h.Status(c)
}

func (h *Handler) ListDevices(c echo.Context) error {
	devices, err := h.devices.ListDevices(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list devices", "error", err)
		return shared.InternalError("list_failed", "failed to list audio devices")
	}
	if devices == nil {
		devices = []string{}
	}
	return c.JSON(http.StatusOK, dto.DeviceListResponse{
		Devices: devices,
		Current: h.devices.Device(),
	})
}

// SelectDevice switches the microphone for the next recording. An empty name
// selects the system default.
func (h *Handler) SelectDevice(c echo.Context) error {
	var req dto.SelectDeviceRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	if req.Device != "" {
		devices, err := h.devices.ListDevices(c.Request().Context())
		if err != nil {
			h.logger.Error("failed to list devices", "error", err)
			return shared.InternalError("list_failed", "failed to list audio devices")
		}
		if !slices.Contains(devices, req.Device) {
			return shared.NotFound("device_not_found", "audio device not found")
		}
	}

	h.devices.SetDevice(req.Device)
	h.logger.Info("audio device selected", "device", req.Device)
	return c.NoContent(http.StatusNoContent)
}
