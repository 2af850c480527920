package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 3001,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	allowedOrigins = configVar[[]string]{
		envKey:       "SERVER_ALLOWED_ORIGINS",
		flagKey:      "allowed-origins",
		defaultValue: []string{"http://localhost:5173"},
	}
	youtubeApiKey = configVar[string]{
		envKey:       "YOUTUBE_API_KEY",
		flagKey:      "youtube-api-key",
		defaultValue: "",
	}
	catalogCacheTTL = configVar[time.Duration]{
		envKey:       "CATALOG_CACHE_TTL",
		flagKey:      "catalog-cache-ttl",
		defaultValue: time.Hour,
	}
	catalogCacheSize = configVar[int]{
		envKey:       "CATALOG_CACHE_SIZE",
		flagKey:      "catalog-cache-size",
		defaultValue: 1024,
	}
	catalogRateLimit = configVar[float64]{
		envKey:       "CATALOG_RATE_LIMIT",
		flagKey:      "catalog-rate-limit",
		defaultValue: 5,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	// .env is optional
	_ = godotenv.Load()

	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.StringSlice(allowedOrigins.flagKey, allowedOrigins.defaultValue, "Allowed client origins, * for any")
	pflag.String(youtubeApiKey.flagKey, youtubeApiKey.defaultValue, "YouTube Data API key")
	pflag.Duration(catalogCacheTTL.flagKey, catalogCacheTTL.defaultValue, "Catalog cache ttl")
	pflag.Int(catalogCacheSize.flagKey, catalogCacheSize.defaultValue, "In-memory catalog cache size")
	pflag.Float64(catalogRateLimit.flagKey, catalogRateLimit.defaultValue, "Upstream catalog requests per second")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host, empty for in-memory cache")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(allowedOrigins.flagKey, allowedOrigins.envKey)
	viper.BindEnv(youtubeApiKey.flagKey, youtubeApiKey.envKey)
	viper.BindEnv(catalogCacheTTL.flagKey, catalogCacheTTL.envKey)
	viper.BindEnv(catalogCacheSize.flagKey, catalogCacheSize.envKey)
	viper.BindEnv(catalogRateLimit.flagKey, catalogRateLimit.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(allowedOrigins.flagKey, allowedOrigins.defaultValue)
	viper.SetDefault(youtubeApiKey.flagKey, youtubeApiKey.defaultValue)
	viper.SetDefault(catalogCacheTTL.flagKey, catalogCacheTTL.defaultValue)
	viper.SetDefault(catalogCacheSize.flagKey, catalogCacheSize.defaultValue)
	viper.SetDefault(catalogRateLimit.flagKey, catalogRateLimit.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		AllowedOrigins:   viper.GetStringSlice(allowedOrigins.flagKey),
		YoutubeApiKey:    viper.GetString(youtubeApiKey.flagKey),
		CatalogCacheTTL:  viper.GetDuration(catalogCacheTTL.flagKey),
		CatalogCacheSize: viper.GetInt(catalogCacheSize.flagKey),
		CatalogRateLimit: viper.GetFloat64(catalogRateLimit.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
