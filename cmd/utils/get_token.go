package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"flightwatch-service/internal/infrastructure/config"
	"flightwatch-service/internal/infrastructure/oauth"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetches an OpenSky access token with the configured client credentials
// and prints it, for manual calls against the REST API.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.OpenSkyClientID == "" || cfg.OpenSkyClientSecret == "" {
		log.Fatal("OPENSKY_CLIENT_ID and OPENSKY_CLIENT_SECRET must be set")
	}

	tokens := oauth.NewOpenSkyOAuth(
		cfg.OpenSkyClientID,
		cfg.OpenSkyClientSecret,
		cfg.OpenSkyAuthURL,
		&http.Client{Timeout: cfg.OpenSkyTimeout},
		logger.NewLogger("warn"),
		metrics.NewMetrics("flightwatch_cli", prometheus.NewRegistry()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := tokens.AccessToken(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Token exchange failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nAccess Token: %s\n", token)
	if cached := tokens.Cached(); cached != nil {
		fmt.Printf("Expires At:   %s\n\n", cached.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("curl -H 'Authorization: Bearer %s' %s/states/all\n", token, cfg.OpenSkyBaseURL)
}
