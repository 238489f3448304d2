// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the docchat data directory.
//
// Adapters:
//   - ConfigStore: TOML configuration (config.toml)
//   - PromptStore: user-editable prompt templates (prompts/*.txt)
//   - Watcher: reloads either when the files are edited externally
package file
