// hichers-server is the dashboard backend-for-frontend. It keeps one session
// per browser (Redis or memory), forwards offer, scheme and dashboard calls
// to the Hichers loyalty API and serves the local backend from PostgreSQL.
//
// Configuration comes from .env and the environment:
//
//	HICHERS_API_URL   remote loyalty API (default https://api.hichers.com/api)
//	HICHERS_TZ        zone offer dates are entered in (default Europe/London)
//	DATABASE_URL      enables the PostgreSQL local backend
//	REDIS_ADDR        enables Redis sessions (REDIS_PASSWORD, REDIS_DB)
//	SESSION_TTL       session cookie lifetime (default 168h)
//
// Default port: 8080
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"

	"github.com/hichers/hichers/internal/config"
	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/localapi"
	"github.com/hichers/hichers/internal/server"
	"github.com/hichers/hichers/internal/session"
	"github.com/hichers/hichers/pkg/twincore"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file to load before the process environment")
	secure := flag.Bool("secure-cookies", false, "Mark the session cookie Secure (serve behind TLS)")
	memoryLocal := flag.Bool("memory-local", true, "Serve the local backend from memory when DATABASE_URL is unset")
	cfg := twincore.ParseFlags("hichers-server", 8080)

	settings, err := config.LoadServer(*envFile)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	twin := twincore.New(cfg)
	logger := twin.Logger
	ctx := context.Background()

	sessions, closeSessions := sessionProvider(ctx, settings, logger)
	defer closeSessions()

	gw := gateway.New(session.ContextReader{},
		gateway.WithBaseURL(settings.APIURL),
		gateway.WithLogger(logger),
	)

	opts := []server.Option{
		server.WithLocation(loc),
		server.WithLogger(logger),
		server.WithSessionTTL(settings.SessionTTL),
		server.WithSecureCookies(*secure),
	}
	local, stopPurger := localBackend(ctx, settings, *memoryLocal, logger)
	if local != nil {
		opts = append(opts, server.WithLocalAPI(local))
	}
	if stopPurger != nil {
		defer stopPurger.Shutdown()
	}

	srv := server.New(gw, sessions, opts...)
	srv.Routes(twin.Router)

	logger.Info("hichers-server ready", "port", cfg.Port, "api", settings.APIURL, "tz", loc.String())
	if err := twin.Serve(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func sessionProvider(ctx context.Context, s *config.Server, logger *slog.Logger) (session.Provider, func()) {
	if s.RedisAddr == "" {
		logger.Info("using in-memory sessions", "ttl", s.SessionTTL)
		p := session.NewMemoryProvider(s.SessionTTL)
		sweeper, err := session.StartSweeper(p, time.Minute, logger)
		if err != nil {
			log.Fatalf("starting session sweeper: %v", err)
		}
		return p, func() { sweeper.Shutdown() }
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.RedisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("connecting to redis at %s: %v", s.RedisAddr, err)
	}
	logger.Info("using redis sessions", "addr", s.RedisAddr, "db", s.RedisDB)
	return session.NewRedisProvider(rdb, s.SessionTTL), func() { rdb.Close() }
}

// localBackend builds the local backend routes. The returned scheduler runs
// the demo code purge and is nil when the backend is disabled.
func localBackend(ctx context.Context, s *config.Server, memory bool, logger *slog.Logger) (server.Mounter, gocron.Scheduler) {
	var repo localapi.Repository
	switch {
	case s.DatabaseURL != "":
		if err := localapi.Migrate(s.DatabaseURL); err != nil {
			log.Fatalf("migrating database: %v", err)
		}
		pool, err := localapi.Connect(ctx, s.DatabaseURL)
		if err != nil {
			log.Fatalf("connecting to database: %v", err)
		}
		repo = localapi.NewPostgresRepository(pool)
		logger.Info("local backend on postgres")
	case memory:
		repo = localapi.NewMemoryRepository(nil)
		logger.Info("local backend in memory")
	default:
		logger.Info("local backend disabled")
		return nil, nil
	}

	otp := localapi.NewOTPService(repo, localapi.WithOTPLogger(logger))
	sched, err := localapi.StartPurger(otp, 0)
	if err != nil {
		log.Fatalf("starting demo code purge: %v", err)
	}
	return localapi.NewHandler(repo, otp, logger), sched
}
