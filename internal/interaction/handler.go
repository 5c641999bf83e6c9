package interaction

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/heyito/ito-sub003/internal/audio"
	"github.com/heyito/ito-sub003/internal/dto"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit    = 50
	minPlaybackRate     = 8000
	maxPlaybackRate     = 192000
	maxPlaybackChannels = 2
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "interaction"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/audio", h.Audio)
}

func toResponse(rec *Interaction) dto.InteractionResponse {
	return dto.InteractionResponse{
		ID:           rec.ID,
		SessionID:    rec.SessionID,
		Mode:         rec.Mode,
		Transcript:   rec.Transcript,
		ErrorMessage: rec.ErrorMessage,
		DurationMs:   rec.DurationMs,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) List(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return shared.BadRequest("invalid_limit", "limit must be a positive integer")
		}
		limit = n
	}

	recs, err := h.store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to list interactions", "error", err)
		return shared.InternalError("list_failed", "failed to list interactions")
	}

	resp := make([]dto.InteractionResponse, len(recs))
	for i, rec := range recs {
		resp[i] = toResponse(rec)
	}
	return c.JSON(http.StatusOK, dto.InteractionListResponse{Interactions: resp})
}

func (h *Handler) Get(c echo.Context) error {
	rec, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(rec))
}

// Audio serves the recording as a WAV file. The rate and channels query
// parameters convert it for playback devices that cannot take the stored
// mono format.
func (h *Handler) Audio(c echo.Context) error {
	rec, err := h.lookup(c)
	if err != nil {
		return err
	}
	if len(rec.Audio) == 0 {
		return shared.NotFound("audio_not_found", "interaction has no audio")
	}
	if c.QueryParam("rate") == "" && c.QueryParam("channels") == "" {
		return c.Blob(http.StatusOK, "audio/wav", rec.Audio)
	}

	hdr, pcm, err := audio.DecodeWav(rec.Audio)
	if err != nil {
		h.logger.Error("stored audio is not a valid wav", "error", err, "id", rec.ID)
		return shared.InternalError("invalid_audio", "stored audio is unreadable")
	}
	rate, err := queryInt(c, "rate", int(hdr.SampleRate), minPlaybackRate, maxPlaybackRate)
	if err != nil {
		return err
	}
	channels, err := queryInt(c, "channels", 1, 1, maxPlaybackChannels)
	if err != nil {
		return err
	}

	out := audio.ResampleUpmix(pcm, int(hdr.SampleRate), rate, channels)
	return c.Blob(http.StatusOK, "audio/wav", audio.ToWav(out, rate, channels, 16))
}

func queryInt(c echo.Context, name string, def, lo, hi int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, shared.BadRequest("invalid_"+name, fmt.Sprintf("%s must be between %d and %d", name, lo, hi))
	}
	return n, nil
}

func (h *Handler) lookup(c echo.Context) (*Interaction, error) {
	id := c.Param("id")
	rec, err := h.store.GetByID(c.Request().Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NotFound("interaction_not_found", "interaction not found")
	}
	if err != nil {
		h.logger.Error("failed to get interaction", "error", err, "id", id)
		return nil, shared.InternalError("get_failed", "failed to get interaction")
	}
	return rec, nil
}
