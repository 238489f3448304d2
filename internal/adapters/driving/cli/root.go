// Package cli provides the docchat command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Services used by commands. Set by SetServices before Execute.
var (
	chatService        driving.ChatService
	documentService    driving.DocumentService
	sessionService     driving.SessionService
	modelService       driving.ModelService
	modelConfigService driving.ModelConfigService
	settingsService    driving.SettingsService
)

// Services holds the driving ports the CLI dispatches to.
type Services struct {
	Chat        driving.ChatService
	Document    driving.DocumentService
	Session     driving.SessionService
	Model       driving.ModelService
	ModelConfig driving.ModelConfigService
	Settings    driving.SettingsService
}

// SetServices wires the command handlers to their services.
func SetServices(s Services) {
	chatService = s.Chat
	documentService = s.Document
	sessionService = s.Session
	modelService = s.Model
	modelConfigService = s.ModelConfig
	settingsService = s.Settings

	SetTUIConfig(&TUIConfig{
		Chat:     s.Chat,
		Session:  s.Session,
		Document: s.Document,
	})
}

// SetVersion overrides the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var (
	verbose bool
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `docchat answers questions about the documents you upload.

Upload PDF, Word, HTML, Markdown or text files, then ask questions in a
session. Answers are generated by a hosted model or a local model file,
grounded on the most relevant passages of your documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	// Read by main before services are built; declared here so help lists it.
	rootCmd.PersistentFlags().StringVar(&dataDir, DataDirFlag, "", "Data directory (default $DOCCHAT_HOME or ~/.docchat)")
}

// DataDirFlag names the persistent flag that overrides the data directory.
const DataDirFlag = "data-dir"

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitNotFound = 3
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrProviderUnavailable):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// commandContext returns the command context, or Background in tests that
// call RunE directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
