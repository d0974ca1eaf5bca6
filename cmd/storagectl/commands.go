package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"github.com/wolfman30/storage-assistant/cmd/mainconfig"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"github.com/wolfman30/storage-assistant/internal/completion"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/storage-assistant/internal/http/middleware"
	"github.com/wolfman30/storage-assistant/internal/records"
)

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the /admin API",
	Long: `Issue a bearer token for the /admin API, signed with ADMIN_JWT_SECRET.

Examples:
  storagectl token --sub ops@example.com --ttl 8h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, _ := cmd.Flags().GetString("sub")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg := loadConfig()
		if cfg.AdminJWTSecret == "" {
			return fmt.Errorf("ADMIN_JWT_SECRET is not set")
		}
		if strings.TrimSpace(sub) == "" {
			return fmt.Errorf("--sub is required")
		}
		if ttl <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		token, err := httpmiddleware.IssueAdminToken(cfg.AdminJWTSecret, sub, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("sub", "", "subject recorded in the token")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message to the configured LLM provider",
	Long: `Send one message to the configured LLM provider and print the reply
together with the extracted service request intent.

Examples:
  storagectl ask "What are your opening hours?"
  storagectl ask --json "Please pick up my boxes on Friday, I'm Jane"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg := loadConfig()
		engine := newEngine(cmd.Context(), cfg, records.NewInMemoryStore())
		message := strings.Join(args, " ")

		reply := engine.GenerateReply(cmd.Context(), message, nil)
		intent := engine.ExtractIntent(cmd.Context(), message, nil)

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"reply": reply, "intent": intent})
		}
		fmt.Fprintf(out, "reply:  %s\n", reply)
		fmt.Fprintf(out, "intent: request=%t type=%s date=%s name=%s\n",
			intent.IsServiceRequest, intent.Type, intent.PreferredDate, intent.CustomerName)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the reply and intent as JSON")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold a conversation with the assistant in the terminal",
	Long: `Hold a conversation with the assistant in the terminal. Sessions and
service requests are kept in memory; nothing is written to the record store.
Type "exit" or send EOF to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := records.NewInMemoryStore()
		orch := chat.NewOrchestrator(newEngine(cmd.Context(), cfg, store), store, nil, chat.NewMemorySessionStore(), chat.Options{
			FormDelay: cfg.BookingFormDelay,
			Location:  cfg.BusinessLocation(),
			Logger:    cliLogger(cfg),
		})
		return runChat(cmd.Context(), orch, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

type conversation interface {
	StartSession(ctx context.Context) (chat.Snapshot, error)
	SendMessage(ctx context.Context, id, text string) (chat.Snapshot, error)
}

// runChat prints assistant messages as they arrive and reports when the
// booking form would open in the web widget.
func runChat(ctx context.Context, conv conversation, in io.Reader, out io.Writer) error {
	snap, err := conv.StartSession(ctx)
	if err != nil {
		return err
	}
	seen := printNew(out, snap, 0)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}
		next, err := conv.SendMessage(ctx, snap.SessionID, text)
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		snap = next
		seen = printNew(out, snap, seen)
		if d := snap.BookingDraft; d != nil && snap.FormOpensAt != nil {
			when := "no date"
			if d.PreferredDate != nil {
				when = d.PreferredDate.Format(time.DateOnly)
			}
			fmt.Fprintf(out, "  [booking form: %s, %s]\n", d.Type, when)
		}
	}
}

func printNew(out io.Writer, snap chat.Snapshot, seen int) int {
	for _, msg := range snap.Transcript[seen:] {
		if msg.Sender == chat.SenderAssistant {
			fmt.Fprintf(out, "assistant: %s\n", msg.Content)
		}
	}
	return len(snap.Transcript)
}

func newEngine(ctx context.Context, cfg *appconfig.Config, faqs records.FAQSource) *completion.Engine {
	logger := cliLogger(cfg)
	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
			awsCfg = &loaded
		} else {
			logger.Warn("failed to load AWS config", "error", err)
		}
	}
	return completion.NewEngine(mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger), faqs,
		completion.WithTimeout(cfg.RequestTimeout),
		completion.WithLogger(logger),
		completion.WithLocation(cfg.BusinessLocation()),
	)
}
