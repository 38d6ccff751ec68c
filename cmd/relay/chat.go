package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/research-relay/internal/client/conversation"
	"github.com/zhouzirui/research-relay/internal/client/render"
	"github.com/zhouzirui/research-relay/internal/client/transport"
)

type chatOptions struct {
	host       string
	port       string
	theme      render.Theme
	answerWait time.Duration
}

func newChatCommand() *cobra.Command {
	var (
		opts  chatOptions
		theme string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal client for a running relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.theme, err = render.ParseTheme(theme); err != nil {
				return err
			}
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "localhost", "relay host; any port in it is ignored")
	cmd.Flags().StringVar(&opts.port, "port", transport.DefaultPort, "relay port")
	cmd.Flags().StringVar(&theme, "theme", "dark", "dark or light")
	cmd.Flags().DurationVar(&opts.answerWait, "answer-wait", 30*time.Second, "how long to wait for an outstanding answer after input ends")
	return cmd
}

// runChat sends input lines as queries one at a time. After each query it
// waits for the answer, the end of the connection or opts.answerWait, then
// prints the answer. It returns when input ends, the server goes away or ctx
// ends.
func runChat(ctx context.Context, in io.Reader, out io.Writer, opts chatOptions) error {
	store := conversation.NewStore()

	adapter := transport.Open(ctx, opts.host, store, transport.WithPort(opts.port))
	if err := adapter.Err(); err != nil {
		log.Error().Err(err).Msg("chat will run offline")
	}
	defer adapter.Close()

	renderer, err := render.New(opts.theme, render.WithPlain(!isTerminal(out)))
	if err != nil {
		return err
	}
	printer := render.NewPrinter(renderer, out)

	stop := make(chan struct{})
	defer close(stop)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	serverGone := adapter.Done()
	if adapter.Err() != nil {
		serverGone = nil
	}

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			if err := adapter.Send(ctx, line); err != nil {
				log.Error().Err(err).Msg("failed to send query")
				continue
			}
			if !waitForAnswer(ctx, store, adapter, opts.answerWait) {
				log.Warn().Dur("waited", opts.answerWait).Msg("no answer yet, continuing")
			}
			if err := printer.Sync(store.Messages(), true); err != nil {
				return err
			}
		case <-serverGone:
			log.Info().Msg("server closed the connection")
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	closeErr := adapter.Close()
	if err := printer.Sync(store.Messages(), true); err != nil {
		return err
	}
	return closeErr
}

// waitForAnswer polls until answer text for the current query has arrived.
// The server sends each answer as one frame, so any received text means the
// answer is complete; text still held back by the chunk buffer is flushed to
// the open message. It reports false when the connection ended or timeout
// elapsed first.
func waitForAnswer(ctx context.Context, store *conversation.Store, adapter *transport.Adapter, timeout time.Duration) bool {
	if adapter.Err() != nil {
		return false
	}
	answered := func() bool {
		last, ok := store.Last()
		return ok && !last.IsUser && last.Text != ""
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		if adapter.Pending() != "" {
			adapter.Flush()
			return true
		}
		if answered() {
			return true
		}
		select {
		case <-ticker.C:
		case <-adapter.Done():
			return answered()
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
