package handler

import (
	"context"
	"log/slog"
	"net/http"

	"pricecache/internal/core/domain"
	jsonresponse "pricecache/pkg/JSONResponse"
)

// PriceCache is the engine's read API, as consumed by the HTTP layer.
type PriceCache interface {
	GetPrice(ctx context.Context, token string) (*domain.TokenPriceData, error)
}

type PriceHandler struct {
	cache  PriceCache
	logger *slog.Logger
}

func NewPriceHandler(logger *slog.Logger, cache PriceCache) *PriceHandler {
	return &PriceHandler{
		cache:  cache,
		logger: logger,
	}
}

func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	if token == "" {
		h.logger.Error("token not provided in request")
		jsonresponse.WriteError(w, jsonresponse.WrapError(
			jsonresponse.ErrInvalidInput,
			"token must be provided",
			http.StatusBadRequest,
		))
		return
	}

	data, err := h.cache.GetPrice(r.Context(), token)
	if err != nil {
		h.logger.Error("failed to get price", slog.String("token", token), slog.Any("error", err))
		jsonresponse.WriteError(w, jsonresponse.WrapError(
			jsonresponse.ErrInternalError,
			"failed to get price",
			http.StatusInternalServerError,
		))
		return
	}
	if data == nil {
		jsonresponse.WriteError(w, jsonresponse.WrapError(
			jsonresponse.ErrNotFound,
			"no price available for token",
			http.StatusNotFound,
		))
		return
	}

	jsonresponse.WriteResponse(w, http.StatusOK, data)
	h.logger.Info("retrieved price", slog.String("token", token))
}
