package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage local model files",
}

var modelUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Copy a local model file into the model directory",
	Long: `Copy a model file into docchat's model directory.

With --activate the model becomes the generation backend: model_type is set
to local and model_path to the stored file.`,
	Args: cobra.ExactArgs(1),
	RunE: runModelUpload,
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded model files",
	Args:  cobra.NoArgs,
	RunE:  runModelList,
}

var modelActivate bool

func init() {
	modelUploadCmd.Flags().BoolVar(&modelActivate, "activate", false, "Use the model for generation")
	modelCmd.AddCommand(modelUploadCmd)
	modelCmd.AddCommand(modelListCmd)
	rootCmd.AddCommand(modelCmd)
}

func runModelUpload(cmd *cobra.Command, args []string) error {
	if modelService == nil {
		return errors.New("model service not configured")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	ctx := commandContext(cmd)
	path, err := modelService.UploadLocalModel(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return fmt.Errorf("failed to upload model: %w", err)
	}
	cmd.Printf("Stored model: %s\n", path)

	if !modelActivate {
		return nil
	}
	if modelConfigService == nil {
		return errors.New("model config service not configured")
	}
	modelType := domain.ModelTypeLocal.String()
	if _, err := modelConfigService.Update(ctx, domain.ConfigPatch{
		ModelType: &modelType,
		ModelPath: &path,
	}); err != nil {
		return fmt.Errorf("failed to activate model: %w", err)
	}
	cmd.Println("Model activated.")
	return nil
}

func runModelList(cmd *cobra.Command, _ []string) error {
	if modelService == nil {
		return errors.New("model service not configured")
	}

	paths, err := modelService.ListLocalModels(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(paths) == 0 {
		cmd.Println("No models uploaded.")
		return nil
	}

	active := ""
	if modelConfigService != nil {
		if cfg := modelConfigService.Get(); cfg.ModelType == domain.ModelTypeLocal {
			active = cfg.ModelPath
		}
	}
	for _, p := range paths {
		marker := " "
		if p == active {
			marker = "*"
		}
		cmd.Printf("%s %s\n", marker, p)
	}
	return nil
}
