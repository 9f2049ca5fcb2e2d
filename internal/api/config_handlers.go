// File: backend/internal/api/config_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/linkflowhq/linkflow/backend/internal/config"
)

// GetProberConfigHandler returns the current probe settings.
func (h *APIHandler) GetProberConfigHandler(w http.ResponseWriter, r *http.Request) {
	h.configMutex.RLock()
	proberJSON := config.ConvertAppConfigToJSON(h.Config).Prober
	h.configMutex.RUnlock()
	respondWithJSON(w, http.StatusOK, proberJSON)
}

// UpdateProberConfigHandler replaces the probe settings and persists the
// full configuration back to the file it was loaded from.
func (h *APIHandler) UpdateProberConfigHandler(w http.ResponseWriter, r *http.Request) {
	var reqJSON config.ProberConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&reqJSON); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	newCfg := config.ConvertJSONToProberConfig(reqJSON)

	h.configMutex.Lock()
	h.Config.Prober = newCfg
	configToSave := *h.Config
	h.configMutex.Unlock()

	if err := config.Save(&configToSave, h.Config.GetLoadedFromPath()); err != nil {
		log.Printf("API Error: UpdateProberConfigHandler - Failed to save config: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save updated configuration: "+err.Error())
		return
	}
	log.Printf("API: Prober configuration updated and saved.")
	respondWithJSON(w, http.StatusOK, reqJSON)
}

// GetSchedulerConfigHandler returns the current concurrency and batching
// settings.
func (h *APIHandler) GetSchedulerConfigHandler(w http.ResponseWriter, r *http.Request) {
	h.configMutex.RLock()
	schedJSON := config.ConvertAppConfigToJSON(h.Config).Scheduler
	h.configMutex.RUnlock()
	respondWithJSON(w, http.StatusOK, schedJSON)
}

// UpdateSchedulerConfigHandler replaces the concurrency and batching
// settings. Runs already in flight keep the settings they started with.
func (h *APIHandler) UpdateSchedulerConfigHandler(w http.ResponseWriter, r *http.Request) {
	var reqJSON config.SchedulerConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&reqJSON); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	newCfg := config.ConvertJSONToSchedulerConfig(reqJSON)

	h.configMutex.Lock()
	h.Config.Scheduler = newCfg
	configToSave := *h.Config
	h.configMutex.Unlock()

	if err := config.Save(&configToSave, h.Config.GetLoadedFromPath()); err != nil {
		log.Printf("API Error: UpdateSchedulerConfigHandler - Failed to save config: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save updated configuration: "+err.Error())
		return
	}
	log.Printf("API: Scheduler configuration updated and saved.")
	respondWithJSON(w, http.StatusOK, reqJSON)
}
