package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
	Long: `Create, inspect and delete chat sessions.

Sessions expire after 24 hours without use.`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's documents and history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionCleanup,
}

func init() {
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionCleanupCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Create(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	cmd.Println(session.ID)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	cmd.Printf("Session: %s\n\n", session.ID)
	cmd.Printf("  Created:       %s\n", session.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Last accessed: %s\n", session.LastAccessed.Format("2006-01-02 15:04:05"))

	cmd.Printf("\nDocuments (%d):\n", len(session.DocumentIDs))
	for _, id := range session.DocumentIDs {
		cmd.Printf("  %s\n", id)
	}

	cmd.Printf("\nHistory (%d turns):\n", len(session.Turns))
	for _, turn := range session.Turns {
		label := "Q"
		if turn.Role == domain.RoleAssistant {
			label = "A"
		}
		cmd.Printf("  %s: %s\n", label, turn.Text)
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	deleted, err := sessionService.Delete(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, args[0])
	}

	cmd.Printf("Deleted session: %s\n", args[0])
	return nil
}

func runSessionCleanup(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	n, err := sessionService.CleanupExpired(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}

	cmd.Printf("Removed %d expired session(s)\n", n)
	return nil
}
