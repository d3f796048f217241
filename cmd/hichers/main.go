// hichers is the shopkeeper CLI for the Hichers loyalty dashboard.
//
// Usage:
//
//	hichers login <country-code> <phone>   Request a login code by SMS
//	hichers verify <code>                  Complete login with the texted code
//	hichers logout                         Forget the stored session
//	hichers whoami                         Show the signed-in business
//	hichers offers [list]                  List offers by past/running/upcoming
//	hichers offers create [flags]          Create an offer
//	hichers offers update <id> [flags]     Edit an offer
//	hichers offers view <id> <map-id>      Show one offer with statistics
//	hichers offers end <id>                End a running offer now
//	hichers offers delete <id>             Delete an offer
//	hichers schemes [list]                 List loyalty schemes
//	hichers schemes create [flags]         Create a loyalty scheme
//	hichers dashboard                      Show headline numbers
//	hichers config [get|set|path]          Read or change ~/.hichers/config.yaml
//	hichers twin <status|reset|seed|advance|set>  Drive a local twin-hichers
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hichers/hichers/internal/auth"
	"github.com/hichers/hichers/internal/config"
	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/hichers/hichers/internal/session"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// app holds what every remote command needs.
type app struct {
	cfg     *config.Config
	store   *session.FileStore
	gw      *gateway.Client
	auth    *auth.Service
	offers  *offers.Manager
	schemes *schemes.Manager
	logger  *slog.Logger
}

func newApp(cfg *config.Config, verbose bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	path, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st := session.NewFileStore(path)
	gw := gateway.New(st,
		gateway.WithBaseURL(cfg.APIURL),
		gateway.WithTimeout(cfg.Timeout.Std()),
		gateway.WithEndpointTimeout(gateway.EndpointSaveScheme, cfg.SchemeTimeout.Std()),
		gateway.WithLogger(logger),
	)
	return &app{
		cfg:     cfg,
		store:   st,
		gw:      gw,
		auth:    auth.NewService(gw, logger),
		offers:  offers.NewManager(gw, offers.WithLocation(loc), offers.WithLogger(logger)),
		schemes: schemes.NewManager(gw, schemes.WithLocation(loc), schemes.WithLogger(logger)),
		logger:  logger,
	}, nil
}

func main() {
	cmd, args, verbose := parseArgs(os.Args[1:])

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}
	if cmd == "version" || cmd == "--version" || cmd == "-v" {
		fmt.Printf("hichers version %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, args, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "hichers: %s\n", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, verbose bool) error {
	switch cmd {
	case "config":
		return cmdConfig(args)
	case "twin":
		return cmdTwin(args)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, verbose)
	if err != nil {
		return err
	}

	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "verify":
		return a.cmdVerify(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "offers":
		return a.cmdOffers(ctx, args)
	case "schemes":
		return a.cmdSchemes(ctx, args)
	case "dashboard":
		return a.cmdDashboard(ctx)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// parseArgs extracts the subcommand, its arguments and the --verbose flag.
func parseArgs(raw []string) (command string, args []string, verbose bool) {
	var filtered []string
	for _, a := range raw {
		if a == "--verbose" {
			verbose = true
			continue
		}
		filtered = append(filtered, a)
	}
	if len(filtered) == 0 {
		return "", nil, verbose
	}
	return filtered[0], filtered[1:], verbose
}

// describe turns an error into the line shown to the shopkeeper.
func describe(err error) string {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, gateway.ErrAuthRequired):
		return "not signed in, run 'hichers login <country-code> <phone>'"
	case errors.Is(err, auth.ErrNoPendingOTP):
		return "request a code first with 'hichers login'"
	case errors.Is(err, auth.ErrCodeRejected):
		return "the code you entered is not valid"
	case errors.Is(err, offers.ErrNotFound):
		return "offer not found"
	case errors.Is(err, offers.ErrNotRunning):
		return "only running offers can be ended"
	case errors.Is(err, schemes.ErrDuplicateName):
		return "a scheme with this name already exists"
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return gateway.Message(err)
	}
	var timeout *gateway.TimeoutError
	var netErr *gateway.NetworkError
	if errors.As(err, &timeout) || errors.As(err, &netErr) {
		return gateway.GenericMessage + " (" + err.Error() + ")"
	}
	return err.Error()
}

func printUsage() {
	fmt.Printf(`hichers: Hichers loyalty dashboard CLI %s

Usage:
  hichers [--verbose] <command> [arguments]

Commands:
  login <country-code> <phone>   Request a login code by SMS
  verify <code>                  Complete login with the texted code
  logout                         Forget the stored session
  whoami                         Show the signed-in business
  offers [list]                  List offers (past, running, upcoming)
  offers create [flags]          Create an offer (see 'hichers offers create -h')
  offers update <id> [flags]     Edit an offer
  offers view <id> <map-id>      Show one offer with statistics
  offers end <id>                End a running offer now
  offers delete <id>             Delete an offer
  schemes [list]                 List loyalty schemes
  schemes create [flags]         Create a loyalty scheme
  dashboard                      Show customers, programs, rewards and loyalty value
  config get [key]               Print configuration
  config set <key> <value>       Change configuration
  config path                    Print the configuration file path
  twin status|reset              Check or reset a running twin-hichers
  twin seed <file>               Load twin state from a JSON file
  twin advance <duration>        Move the twin clock forward (e.g. 90m)
  twin set <key> <value>         Change a twin response-shape setting
  version                        Print the hichers version

Environment:
  HICHERS_API_URL    Override api_url
  HICHERS_TZ         Override timezone
  HICHERS_TWIN_URL   twin-hichers address (default http://localhost:9100)
`, version)
}
