package driven

// PromptStore loads prompt templates by name.
type PromptStore interface {
	// Load returns the template called name. Stores fall back to a
	// built-in default when the user has not overridden it.
	Load(name string) (string, error)

	// Reload drops cached templates so edits on disk take effect.
	Reload()
}

// Prompt names.
const (
	// PromptChat wraps the question. Placeholders, in order: retrieved
	// context, conversation history, question.
	PromptChat = "chat_prompt"

	// PromptChatSystem is the system message for chat-style backends.
	PromptChatSystem = "chat_system"
)

// PromptStoreAware is implemented by services whose prompts can be swapped
// after construction.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}
