package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hichers/hichers/internal/client"
	"github.com/hichers/hichers/internal/config"
)

const defaultTwinURL = "http://localhost:9100"

// ---------------------------------------------------------------------------
// hichers config
// ---------------------------------------------------------------------------

func cmdConfig(args []string) error {
	sub := "get"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	path, err := config.Path()
	if err != nil {
		return err
	}

	switch sub {
	case "path":
		fmt.Println(path)
		return nil
	case "get":
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return err
		}
		keys := config.Keys
		if len(args) > 0 {
			keys = args
		}
		for _, k := range keys {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				fmt.Println(v)
			} else {
				fmt.Printf("%-16s %s\n", k, v)
			}
		}
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: hichers config set <key> <value>")
		}
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveTo(path, cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s in %s\n", args[0], path)
		return nil
	default:
		return fmt.Errorf("unknown config command %q", sub)
	}
}

// ---------------------------------------------------------------------------
// hichers twin
// ---------------------------------------------------------------------------

func twinURL() string {
	if v := os.Getenv("HICHERS_TWIN_URL"); v != "" {
		return v
	}
	return defaultTwinURL
}

func cmdTwin(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hichers twin <status|reset|seed|advance|set>")
	}
	base := twinURL()
	ac := client.New(base)

	switch args[0] {
	case "status":
		ok, body := ac.Health()
		state := "unhealthy"
		if ok {
			state = "healthy"
		}
		fmt.Printf("  %-14s %-10s %s\n", "twin-hichers", state, base)
		if !ok {
			return fmt.Errorf("twin not healthy: %s", body)
		}
		return nil
	case "reset":
		resp, err := ac.Reset()
		if err != nil {
			return err
		}
		fmt.Printf("Reset twin-hichers: %s\n", resp)
		return nil
	case "seed":
		if len(args) != 2 {
			return fmt.Errorf("usage: hichers twin seed <file>")
		}
		resp, err := ac.Seed(args[1])
		if err != nil {
			return fmt.Errorf("seeding twin-hichers: %w", err)
		}
		fmt.Printf("Seeded twin-hichers: %s\n", resp)
		return nil
	case "advance":
		if len(args) != 2 {
			return fmt.Errorf("usage: hichers twin advance <duration>")
		}
		resp, err := ac.AdvanceTime(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Advanced twin clock: %s\n", resp)
		return nil
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: hichers twin set <key> <value>")
		}
		resp, err := ac.UpdateSettings(map[string]any{args[1]: settingValue(args[2])})
		if err != nil {
			return err
		}
		fmt.Printf("Updated twin settings: %s\n", resp)
		return nil
	default:
		return fmt.Errorf("unknown twin command %q", args[0])
	}
}

// settingValue passes booleans and numbers through typed so the twin can
// validate them.
func settingValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
