package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

var uploadSessionID string

var uploadCmd = &cobra.Command{
	Use:   "upload <files...>",
	Short: "Extract and index documents",
	Long: `Extract the text of each file, split it into chunks and build its
embedding index. Files that cannot be processed are reported; the others are
still indexed.

Use --session to make the documents the default context of a chat session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadSessionID, "session", "s", "", "Session to attach the documents to")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	req := driving.UploadRequest{SessionID: uploadSessionID}
	var readFailures []driving.UploadFailure
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			readFailures = append(readFailures, driving.UploadFailure{Name: path, Error: err.Error()})
			continue
		}
		req.Files = append(req.Files, driving.UploadFile{Name: filepath.Base(path), Data: data})
	}
	if len(req.Files) == 0 {
		printFailures(cmd, readFailures)
		return errors.New("no readable files")
	}

	result, err := documentService.Upload(commandContext(cmd), req)
	if err != nil {
		printFailures(cmd, readFailures)
		return fmt.Errorf("upload failed: %w", err)
	}

	for i, id := range result.DocumentIDs {
		cmd.Printf("  %s\n", id)
		if i == len(result.DocumentIDs)-1 {
			cmd.Println()
		}
	}
	cmd.Printf("Uploaded %d document(s), %d page(s)\n", len(result.DocumentIDs), result.TotalPages)
	if uploadSessionID != "" {
		cmd.Printf("Attached to session %s\n", uploadSessionID)
	}
	printFailures(cmd, append(readFailures, result.Failures...))
	return nil
}

func printFailures(cmd *cobra.Command, failures []driving.UploadFailure) {
	if len(failures) == 0 {
		return
	}
	cmd.Printf("\nFailed (%d):\n", len(failures))
	for _, f := range failures {
		cmd.Printf("  %s: %s\n", f.Name, f.Error)
	}
}
