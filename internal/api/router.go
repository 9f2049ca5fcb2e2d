// File: backend/internal/api/router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/linkflowhq/linkflow/backend/internal/config"
)

func NewRouter(cfg *config.AppConfig) *mux.Router {
	router := mux.NewRouter()
	apiHandler := NewAPIHandler(cfg)

	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	router.HandleFunc("/ping", apiHandler.PingHandler).Methods(http.MethodGet, http.MethodOptions)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(APIKeyAuthMiddleware(cfg.Server.APIKey))

	// Link Validation
	apiV1.HandleFunc("/validate/links", apiHandler.ValidateLinksHandler).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/validate/links/stream", apiHandler.ValidateLinksStreamHandler).Methods(http.MethodGet, http.MethodOptions)

	// Page Scraping
	apiV1.HandleFunc("/scrape/links", apiHandler.ScrapeLinksHandler).Methods(http.MethodPost, http.MethodOptions)

	// Configuration Management (Server Defaults)
	apiV1.HandleFunc("/config/prober", apiHandler.GetProberConfigHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/config/prober", apiHandler.UpdateProberConfigHandler).Methods(http.MethodPut, http.MethodOptions)
	apiV1.HandleFunc("/config/scheduler", apiHandler.GetSchedulerConfigHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/config/scheduler", apiHandler.UpdateSchedulerConfigHandler).Methods(http.MethodPut, http.MethodOptions)

	return router
}
