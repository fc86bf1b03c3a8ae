package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pricebot/internal/chat"
	"pricebot/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session in the terminal",
		Long:  "Chat with the product assistant. Type /discard to drop a pending action and /quit to leave.",
		Run:   runChat,
	}

	cmd.Flags().Duration("think", 0, "Pause before each reply")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	think, _ := cmd.Flags().GetDuration("think")

	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	products, closeFn, err := openProducts(cfg, log)
	if err != nil {
		exitErr("open products", err)
	}
	defer closeFn()

	resolver := newREPLResolver(products, log, think)
	conv := chat.NewConversation("operator", time.Now())

	if err := repl(cmd.Context(), os.Stdin, os.Stdout, resolver, conv); err != nil {
		exitErr("chat", err)
	}
}

// newREPLResolver builds the resolver for the terminal. The REPL prints
// toasts itself, so the resolver gets no notifier.
func newREPLResolver(catalog interface {
	chat.Directory
	chat.Mutator
}, log *zap.Logger, think time.Duration) *chat.Resolver {
	return chat.NewResolver(catalog, catalog, nil, log, chat.WithThinkDelay(think))
}

// repl reads one message per line until EOF or /quit
func repl(ctx context.Context, in io.Reader, out io.Writer, resolver *chat.Resolver, conv *chat.Conversation) error {
	for _, m := range conv.Snapshot().Messages {
		printMessage(out, m)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/discard":
			if err := conv.DiscardPending(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Pending action discarded.")
			continue
		}

		result, err := resolver.Turn(ctx, conv, line)
		if errors.Is(err, chat.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			return err
		}

		for _, m := range result.Messages {
			if m.Sender == domain.SenderBot {
				printMessage(out, m)
			}
		}
		for _, n := range result.Notifications {
			fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Text)
		}
	}
}

func printMessage(out io.Writer, m domain.Message) {
	fmt.Fprintf(out, "bot: %s\n", m.Text)
	for _, p := range m.AttachedProducts {
		line := fmt.Sprintf("  - %s  $%.2f", p.Name, p.Price)
		if p.HasRecommendedRange() {
			line += fmt.Sprintf("  (recommended $%.2f - $%.2f)", *p.MinPrice, *p.MaxPrice)
		}
		fmt.Fprintln(out, line)
	}
}
