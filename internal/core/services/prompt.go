package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// DefaultChatPrompt frames retrieved context, prior turns and the question.
const DefaultChatPrompt = "Answer based on context:\n%s\n\nChat history:\n%s\n\nQuestion: %s"

// DefaultChatSystemPrompt is sent to backends that take a system message.
const DefaultChatSystemPrompt = "You answer questions about the user's uploaded documents. " +
	"Use only the provided context. If the context does not contain the answer, say so."

// NoContextPlaceholder replaces the context when retrieval found nothing.
const NoContextPlaceholder = "No relevant context found in the uploaded documents."

// promptBuilder renders the chat prompt from a template.
type promptBuilder struct {
	store driven.PromptStore
}

// chatTemplate returns the user's chat template, or the default when it is
// missing or does not have exactly three %s placeholders.
func (b promptBuilder) chatTemplate() string {
	tmpl := b.load(driven.PromptChat, DefaultChatPrompt)
	if strings.Count(tmpl, "%s") != 3 || strings.Count(tmpl, "%") != 3 {
		logger.Warn("Prompt %s must contain exactly three %%s placeholders, using the default", driven.PromptChat)
		return DefaultChatPrompt
	}
	return tmpl
}

func (b promptBuilder) systemPrompt() string {
	return b.load(driven.PromptChatSystem, DefaultChatSystemPrompt)
}

func (b promptBuilder) load(name, fallback string) string {
	if b.store == nil {
		return fallback
	}
	text, err := b.store.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}

// build renders the prompt and returns it with the history turns it includes.
// History is filled newest first: at most maxTurns turns, and only while the
// estimated tokens fit in the context window left after the answer and the
// rest of the prompt. Included turns keep their chronological order.
func (b promptBuilder) build(
	context string, history []domain.Turn, question string, cfg domain.ModelConfig, maxTurns int,
) (string, []domain.Turn) {
	tmpl := b.chatTemplate()
	if strings.TrimSpace(context) == "" {
		context = NoContextPlaceholder
	}

	base := fmt.Sprintf(tmpl, context, "", question)
	budget := cfg.ContextWindow - cfg.MaxTokens - estimateTokens(base)
	kept := boundHistory(history, maxTurns, budget)

	return fmt.Sprintf(tmpl, context, formatHistory(kept), question), kept
}

// boundHistory keeps the most recent turns that fit both limits.
func boundHistory(history []domain.Turn, maxTurns, budget int) []domain.Turn {
	if maxTurns <= 0 || budget <= 0 {
		return nil
	}

	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0 && len(history)-i <= maxTurns; i-- {
		cost := estimateTokens(formatTurn(history[i])) + 1
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}

func formatHistory(turns []domain.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = formatTurn(t)
	}
	return strings.Join(lines, "\n")
}

func formatTurn(t domain.Turn) string {
	switch t.Role {
	case domain.RoleAssistant:
		return "Assistant: " + t.Text
	default:
		return "User: " + t.Text
	}
}

// estimateTokens approximates token count as a quarter of the rune count,
// rounded up.
func estimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
