package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

var (
	chatSessionID string
	chatDocIDs    []string
	chatStream    bool
	chatSources   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask questions about uploaded documents",
	Long: `Ask a question answered from your documents.

Without a question, an interactive prompt is started when stdin is a
terminal; otherwise each line of stdin is asked in turn. A new session is
created unless --session is given.

Examples:
  docchat chat "What is the refund policy?" --session 3f2a...
  docchat chat --doc 9b1c... --stream`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Session to continue")
	chatCmd.Flags().StringSliceVarP(&chatDocIDs, "doc", "d", nil, "Restrict retrieval to these document IDs")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "Print the answer as it is generated")
	chatCmd.Flags().BoolVar(&chatSources, "sources", true, "Print the passages the answer was based on")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil || sessionService == nil {
		return errors.New("chat service not configured")
	}

	ctx := commandContext(cmd)
	sessionID := chatSessionID
	if sessionID == "" {
		session, err := sessionService.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = session.ID
		cmd.Printf("Session: %s\n\n", sessionID)
	}

	if len(args) == 1 {
		return askOnce(ctx, cmd, sessionID, args[0])
	}

	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		interactive = true
		cmd.Println("Type a question and press Enter. Empty line or Ctrl-D to quit.")
	}
	return chatLoop(ctx, cmd, in, sessionID, interactive)
}

func chatLoop(ctx context.Context, cmd *cobra.Command, in io.Reader, sessionID string, interactive bool) error {
	reader := bufio.NewReader(in)
	for {
		if interactive {
			cmd.Print("> ")
		}
		line, err := reader.ReadString('\n')
		question := strings.TrimSpace(line)
		if question == "" {
			if interactive || err != nil {
				return nil
			}
			continue
		}
		if askErr := askOnce(ctx, cmd, sessionID, question); askErr != nil {
			if !interactive {
				return askErr
			}
			cmd.PrintErrf("Error: %v\n", askErr)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func askOnce(ctx context.Context, cmd *cobra.Command, sessionID, question string) error {
	req := driving.ChatRequest{
		Question:    question,
		SessionID:   sessionID,
		DocumentIDs: chatDocIDs,
	}

	var (
		resp *driving.ChatResponse
		err  error
	)
	if chatStream {
		resp, err = chatService.AskStream(ctx, req, func(delta string) error {
			cmd.Print(delta)
			return nil
		})
		if err == nil {
			cmd.Println()
			cmd.Println()
		}
	} else {
		resp, err = chatService.Ask(ctx, req)
		if err == nil {
			cmd.Println(resp.Answer)
			cmd.Println()
		}
	}
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	if chatSources && len(resp.Sources) > 0 {
		cmd.Println("Sources:")
		for _, src := range resp.Sources {
			cmd.Printf("  [%s #%d %.2f] %s\n", shortID(src.DocumentID), src.ChunkIndex, src.Score,
				strings.ReplaceAll(src.Excerpt, "\n", " "))
		}
		cmd.Println()
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
