package http

import (
	"log/slog"
	"net/http"

	"pricecache/internal/adapters/handlers/http/handler"
)

func NewServer(
	logger *slog.Logger,
	priceHandler *handler.PriceHandler,
	healthHandler *HealthHandler,
) http.Handler {
	mux := http.NewServeMux()
	addRoutes(mux, priceHandler, healthHandler)

	var h http.Handler = mux

	return h
}
