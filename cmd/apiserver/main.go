// File: backend/cmd/apiserver/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/api"
	"github.com/linkflowhq/linkflow/backend/internal/config"
)

const (
	defaultPort    = "8080"
	configFilePath = "config.json"
)

func main() {
	appConfig, err := config.Load(configFilePath)
	if err != nil {
		log.Printf("Main: Notice during config.Load: %v. Application will proceed with available/defaulted config.", err)
	}
	if appConfig == nil {
		log.Fatalf("CRITICAL: Configuration could not be loaded by config.Load, and no defaults were returned. Exiting.")
	}

	// --- API Key Configuration ---
	loadedAPIKeyFromFile := appConfig.Server.APIKey
	apiKeyFromEnv := os.Getenv("LINKFLOW_API_KEY")
	if apiKeyFromEnv != "" {
		appConfig.Server.APIKey = apiKeyFromEnv
		log.Printf("API Key: Using value from LINKFLOW_API_KEY environment variable (length: %d).", len(appConfig.Server.APIKey))
	} else {
		if loadedAPIKeyFromFile == "" {
			log.Printf("API Key: Empty in config.json and no ENV override. Using system default placeholder.")
			appConfig.Server.APIKey = config.DefaultSystemAPIKeyPlaceholder
		} else {
			appConfig.Server.APIKey = loadedAPIKeyFromFile
		}
	}
	if appConfig.Server.APIKey == config.DefaultSystemAPIKeyPlaceholder {
		log.Println("!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
		log.Println("!!! WARNING: API Key is the default system placeholder. THIS IS INSECURE.       !!!")
		log.Println("!!! Please set a unique 'server.apiKey' in 'config.json' or use               !!!")
		log.Println("!!! the 'LINKFLOW_API_KEY' environment variable for production deployments.     !!!")
		log.Println("!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
	}

	// --- Port Configuration ---
	if appConfig.Server.Port == "" {
		appConfig.Server.Port = defaultPort
	}
	if portEnv := os.Getenv("LINKFLOW_PORT"); portEnv != "" {
		appConfig.Server.Port = portEnv
		log.Printf("Port: Overridden by LINKFLOW_PORT environment variable: %s", portEnv)
	}

	// --- Initialize Router and HTTP Server ---
	router := api.NewRouter(appConfig)
	serverAddr := ":" + appConfig.Server.Port
	httpServer := &http.Server{
		Handler: router, Addr: serverAddr,
		// WriteTimeout is generous so SSE streams over long runs are not
		// cut off mid-validation.
		WriteTimeout: 10 * time.Minute, ReadTimeout: 15 * time.Second, IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting LinkFlow API server on http://localhost%s", serverAddr)
	if appConfig.Server.APIKey != "" && appConfig.Server.APIKey != config.DefaultSystemAPIKeyPlaceholder {
		log.Printf("API Key configured (length: %d). Ensure this is adequately secured.", len(appConfig.Server.APIKey))
	} else {
		log.Printf("API Key: Using default placeholder (length: %d). THIS IS INSECURE.", len(config.DefaultSystemAPIKeyPlaceholder))
	}

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server ListenAndServe failed: %v", err)
	}
}
