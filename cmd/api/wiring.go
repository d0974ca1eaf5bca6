package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/chat"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	"github.com/wolfman30/storage-assistant/internal/notify"
	"github.com/wolfman30/storage-assistant/internal/observability/metrics"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewChatMetrics(reg)
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// connectRedis returns a client when sessions live in redis or redis is
// reachable for the FAQ cache. A required but unreachable redis is fatal.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*redis.Client, error) {
	required := cfg.SessionStore == "redis"
	if !required && strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	client := newRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if required {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		logger.Warn("redis unavailable, FAQ cache disabled", "addr", cfg.RedisAddr, "error", err)
		return nil, nil
	}
	return client, nil
}

func connectPostgresPool(ctx context.Context, dbURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(dbURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

type recordStores struct {
	store    records.Store
	faqs     records.FAQSource
	faqCache *records.FAQCache
	close    func()
}

func setupRecordStore(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (recordStores, error) {
	out := recordStores{close: func() {}}
	switch cfg.RecordStore {
	case "postgres":
		pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return out, fmt.Errorf("record store postgres: DATABASE_URL missing or unreachable")
		}
		out.store = records.NewPostgresStore(pool)
		out.close = pool.Close
	case "memory":
		out.store = records.NewInMemoryStore()
	case "airtable", "":
		store, err := records.NewAirtableStore(records.AirtableConfig{
			APIKey:  cfg.AirtableAPIKey,
			BaseID:  cfg.AirtableBaseID,
			BaseURL: cfg.AirtableBaseURL,
			Timeout: cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return out, err
		}
		out.store = store
	default:
		return out, fmt.Errorf("unknown RECORD_STORE %q", cfg.RecordStore)
	}

	out.faqs = out.store
	if redisClient != nil {
		out.faqCache = records.NewFAQCache(out.store, redisClient, cfg.FAQCacheTTL)
		out.faqs = out.faqCache
	}
	return out, nil
}

// setupCalendar returns nil when Google credentials are not configured; the
// chat then runs without slots or calendar booking.
func setupCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *calendar.Client {
	client, err := calendar.NewClient(ctx, calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		RefreshToken: cfg.GoogleRefreshToken,
		CalendarID:   cfg.GoogleCalendarID,
		Location:     cfg.BusinessLocation(),
		Timeout:      cfg.RequestTimeout,
	}, logger)
	if err != nil {
		logger.Warn("google calendar disabled", "error", err)
		return nil
	}
	return client
}

func setupSessions(cfg *appconfig.Config, redisClient *redis.Client) chat.SessionStore {
	if cfg.SessionStore == "redis" && redisClient != nil {
		return chat.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	}
	return chat.NewMemorySessionStore()
}

func setupEmail(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Sender {
	from := notify.From{Name: cfg.SendGridFromName, ReplyTo: cfg.EmailReplyTo}
	switch cfg.EmailProvider {
	case "ses":
		if awsCfg != nil && cfg.SESFromEmail != "" {
			from.Email = cfg.SESFromEmail
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), from, logger)
		}
		logger.Warn("SES email not configured, confirmations will only be logged")
	default:
		from.Email = cfg.SendGridFromEmail
		if sender := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger); sender != nil {
			return sender
		}
		logger.Warn("SendGrid not configured, confirmations will only be logged")
	}
	return notify.NewLogSender(logger)
}
