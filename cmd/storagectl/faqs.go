package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	"github.com/wolfman30/storage-assistant/internal/records"
)

var faqsCmd = &cobra.Command{
	Use:   "faqs",
	Short: "Manage the FAQ table in postgres",
}

var faqsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the FAQ table with the contents of a JSON file",
	Long: `Replace the FAQ table with the contents of a JSON file and drop the
cached FAQ list from redis so the assistant picks them up immediately.

The file holds either an array of {"question","answer"} objects or an
object with a "faqs" array.

Examples:
  storagectl faqs seed --file testdata/faqs.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		faqs, err := parseFAQFile(data)
		if err != nil {
			return err
		}

		cfg := loadConfig()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		ctx := cmd.Context()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()

		store := records.NewPostgresStore(pool)
		if err := store.ReplaceFAQs(ctx, faqs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d FAQs\n", len(faqs))

		if err := invalidateFAQCache(ctx, cfg, store); err != nil {
			cliLogger(cfg).Warn("FAQ cache not invalidated", "error", err)
		}
		return nil
	},
}

func init() {
	faqsSeedCmd.Flags().String("file", "", "JSON file with the FAQs")
	faqsCmd.AddCommand(faqsSeedCmd)
}

func parseFAQFile(data []byte) ([]records.FAQ, error) {
	data = bytes.TrimSpace(data)
	var faqs []records.FAQ
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &faqs); err != nil {
			return nil, fmt.Errorf("parsing FAQ file: %w", err)
		}
	} else {
		var wrapped struct {
			FAQs []records.FAQ `json:"faqs"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parsing FAQ file: %w", err)
		}
		faqs = wrapped.FAQs
	}
	if len(faqs) == 0 {
		return nil, fmt.Errorf("FAQ file has no entries")
	}
	return faqs, nil
}

func invalidateFAQCache(ctx context.Context, cfg *appconfig.Config, source records.FAQSource) error {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	defer client.Close()
	return records.NewFAQCache(source, client, cfg.FAQCacheTTL).Invalidate(ctx)
}
