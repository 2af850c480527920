package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/teris-io/shortid"
	"github.com/watchroom/server/internal/controller"
	"github.com/watchroom/server/internal/domain"
	catalogInmemory "github.com/watchroom/server/internal/repository/catalog/inmemory"
	catalogRedis "github.com/watchroom/server/internal/repository/catalog/redis"
	"github.com/watchroom/server/internal/repository/catalog/youtube"
	connectionInmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/watchroom/server/internal/repository/room/inmemory"
	"github.com/watchroom/server/internal/service/catalog"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/redisclient"
	"github.com/watchroom/server/pkg/ytvideodata"
)

type AppConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	YoutubeApiKey    string        `json:"-"`
	CatalogBaseURL   string        `json:"catalog_base_url"`
	CatalogCacheTTL  time.Duration `json:"catalog_cache_ttl"`
	CatalogCacheSize int           `json:"catalog_cache_size"`
	CatalogRateLimit float64       `json:"catalog_rate_limit"`
	RedisHost        string        `json:"redis_host"`
	RedisPort        int           `json:"redis_port"`
	RedisPassword    string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.CatalogCacheTTL <= 0 {
		return fmt.Errorf("catalog cache ttl must be positive")
	}
	if cfg.CatalogCacheSize < 1 {
		return fmt.Errorf("catalog cache size must be greater than 0")
	}
	if cfg.CatalogRateLimit <= 0 {
		return fmt.Errorf("catalog rate limit must be positive")
	}
	if cfg.RedisHost != "" && (cfg.RedisPort < 1 || cfg.RedisPort > 65535) {
		return fmt.Errorf("redis port must be between 1 and 65535")
	}
	return nil
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(h), nil
}

type catalogCache interface {
	GetSearch(context.Context, string) ([]domain.Video, error)
	SetSearch(context.Context, string, []domain.Video) error
	GetVideo(context.Context, string) (domain.Video, error)
	SetVideo(context.Context, domain.Video) error
}

// NewHandler wires repositories, services and the controller. The returned
// cleanup releases the redis client when one was opened.
func NewHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	var cache catalogCache
	if cfg.RedisHost != "" {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		cleanup = func() { rc.Close() }
		cache = catalogRedis.NewRepo(rc, cfg.CatalogCacheTTL)
		logger.InfoContext(ctx, "using redis catalog cache", "host", cfg.RedisHost, "port", cfg.RedisPort)
	} else {
		cache = catalogInmemory.NewRepo(cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
		logger.InfoContext(ctx, "using in-memory catalog cache", "size", cfg.CatalogCacheSize)
	}

	generator, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create room id generator: %w", err)
	}

	clk := clock.New()
	roomRepo := roomInmemory.NewRepo(clk)
	connectionRepo := connectionInmemory.NewRepo()
	roomService := room.NewService(roomRepo, connectionRepo, generator, clk, logger)

	if cfg.YoutubeApiKey == "" {
		logger.WarnContext(ctx, "youtube api key is not set, search is disabled")
	}
	catalogService := catalog.NewService(
		youtube.NewRepo(cfg.YoutubeApiKey, nil, cfg.CatalogBaseURL),
		cache,
		ytvideodata.New(),
		logger,
		&catalog.Config{
			RequestsPerSecond: cfg.CatalogRateLimit,
			Burst:             max(1, int(cfg.CatalogRateLimit)),
		},
	)

	controller := controller.NewController(roomService, catalogService, connectionRepo, logger, &controller.Config{
		AllowedOrigins: cfg.AllowedOrigins,
	})

	return controller.GetMux(), cleanup, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	slog.SetDefault(logger)

	handler, cleanup, err := NewHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
