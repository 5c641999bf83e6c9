package dictionary

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/heyito/ito-sub003/internal/dto"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "dictionary"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Add)
	g.DELETE("/:word", h.Remove)
}

func (h *Handler) List(c echo.Context) error {
	words, err := h.store.Words(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list words", "error", err)
		return shared.InternalError("list_failed", "failed to list dictionary")
	}
	if words == nil {
		words = []string{}
	}
	return c.JSON(http.StatusOK, dto.DictionaryResponse{Words: words})
}

func (h *Handler) Add(c echo.Context) error {
	var req dto.AddWordsRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if len(req.Words) == 0 {
		return shared.BadRequest("missing_words", "words is required")
	}

	if err := h.store.Add(c.Request().Context(), req.Words...); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return shared.BadRequest("invalid_word", err.Error())
		}
		h.logger.Error("failed to add words", "error", err)
		return shared.InternalError("add_failed", "failed to add words")
	}
	return h.List(c)
}

func (h *Handler) Remove(c echo.Context) error {
	word := c.Param("word")
	if err := h.store.Remove(c.Request().Context(), word); err != nil {
		h.logger.Error("failed to remove word", "error", err, "word", word)
		return shared.InternalError("remove_failed", "failed to remove word")
	}
	return c.NoContent(http.StatusNoContent)
}
