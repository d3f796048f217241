// twin-hichers simulates the Hichers loyalty API consumed by the dashboard:
// OTP login, offers, loyalty schemes and business metrics, with the remote's
// uneven response shapes reproducible through /admin/settings.
//
// Integration method: HICHERS_API_URL env var
// Default port: 9100
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/hichers/hichers/pkg/admin"
	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/api"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

const defaultSecret = "twin-hichers-dev-secret"

func main() {
	tz := flag.String("tz", "Europe/London", "Timezone offer windows are interpreted in")
	cfg := twincore.ParseFlags("twin-hichers", 9100)

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("invalid -tz: %v", err)
	}
	secret := os.Getenv("HICHERS_TWIN_SECRET")
	if secret == "" {
		secret = defaultSecret
	}

	twin := twincore.New(cfg)
	memStore := store.New()
	tokens := api.NewTokenIssuer(secret, memStore.Clock.Now)

	apiHandler := api.NewHandler(memStore, twin.Middleware(), tokens, loc, twin.Logger)
	apiHandler.Routes(twin.Router)

	adminHandler := admin.NewHandler(memStore, twin.Middleware(), memStore.Clock)
	adminHandler.SetConfigProvider(twin)
	adminHandler.SetSettingsProvider(apiHandler)
	adminHandler.Routes(twin.Router)

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to read seed file: %v", err)
		}
		if err := memStore.LoadState(data); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	twin.Logger.Info("twin-hichers ready", "port", cfg.Port, "tz", loc.String())
	if err := twin.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
