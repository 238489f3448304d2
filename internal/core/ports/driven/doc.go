// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Maps text to vectors (hosted or local)
//   - Generator: Produces answers (hosted API or local model file)
//   - Chunker: Splits document text before embedding
//   - PostProcessorPipeline: Cleans generated text
//   - NormaliserRegistry: Extracts text from uploaded files
//   - DocumentStore, IndexStore: Durable document text and vector indexes
//   - SessionStore: Durable conversation state
//   - ModelStore: Uploaded local model binaries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - PromptStore: User-editable prompt templates. Defaults are built in.
//   - AIConfigValidator: Connectivity checks for provider settings.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
