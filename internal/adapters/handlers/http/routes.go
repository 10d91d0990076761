package http

import (
	"net/http"

	"pricecache/internal/adapters/handlers/http/handler"
)

func addRoutes(mux *http.ServeMux, priceHandler *handler.PriceHandler, healthHandler *HealthHandler) {
	mux.HandleFunc("GET /prices/{token}", priceHandler.GetPrice)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
}
