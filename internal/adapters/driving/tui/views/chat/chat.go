// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// sourcesHeight is the number of lines reserved for the sources list.
const sourcesHeight = 8

// View is the conversation view: transcript, sources, question input and status bar.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.Prompt
	transcript viewport.Model
	sources    *list.SourceList
	statusbar  *status.Bar

	chatService     driving.ChatService
	sessionService  driving.SessionService
	documentService driving.DocumentService
	ctx             context.Context

	sessionID string
	turns     []domain.Turn
	pending   string

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
	thinking   bool
}

// NewView creates a new chat view. documentService is optional and only
// used to show document titles next to sources.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	chatService driving.ChatService,
	sessionService driving.SessionService,
	documentService driving.DocumentService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:          s,
		keymap:          km,
		input:           input.NewPrompt(s, "Ask:", "Ask a question about your documents..."),
		transcript:      viewport.New(80, 10),
		sources:         list.NewSourceList(s),
		statusbar:       status.NewBar(s, km),
		chatService:     chatService,
		sessionService:  sessionService,
		documentService: documentService,
		ctx:             context.Background(),
		width:           80,
		height:          24,
		focusInput:      true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view, starting a session if none is active.
func (v *View) Init() tea.Cmd {
	if v.sessionID == "" {
		return tea.Batch(v.input.Init(), v.startSession())
	}
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SessionStarted:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.sessionID = msg.Session.ID
		v.statusbar.SetSession(v.sessionID)
		return v, nil

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}

	case keymap.Matches(keyStr, v.keymap.NewSession):
		v.Reset()
		return v, v.startSession()

	case keymap.Matches(keyStr, v.keymap.Focus):
		v.toggleFocus()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ScrollUp), keymap.Matches(keyStr, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd
	}

	if !v.focusInput {
		v.sources, _ = v.sources.Update(msg)
		return v, nil
	}

	if msg.Type == tea.KeyEnter {
		question := strings.TrimSpace(v.input.Value())
		if question == "" || v.thinking {
			return v, nil
		}
		v.input.Reset()
		v.pending = question
		v.thinking = true
		v.err = nil
		v.statusbar.SetState(status.StateThinking)
		v.refreshTranscript()
		return v, v.ask(question)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) toggleFocus() {
	if v.focusInput && v.sources.Count() > 0 {
		v.focusInput = false
		v.input.Blur()
		v.statusbar.SetState(status.StateSources)
		return
	}
	v.focusInput = true
	v.input.Focus()
	if v.statusbar.State() == status.StateSources {
		v.statusbar.SetState(status.StateAnswered)
	}
}

// startSession returns a command that creates a session.
func (v *View) startSession() tea.Cmd {
	return func() tea.Msg {
		if v.sessionService == nil {
			return messages.SessionStarted{Err: ErrNoChatService}
		}
		session, err := v.sessionService.Create(v.ctx)
		return messages.SessionStarted{Session: session, Err: err}
	}
}

// ask returns a command that sends question to the chat service.
func (v *View) ask(question string) tea.Cmd {
	sessionID := v.sessionID
	return func() tea.Msg {
		if v.chatService == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoChatService}
		}
		if sessionID == "" {
			return messages.AnswerReceived{Question: question, Err: ErrNoSession}
		}

		resp, err := v.chatService.Ask(v.ctx, driving.ChatRequest{
			Question:  question,
			SessionID: sessionID,
		})
		if err != nil {
			return messages.AnswerReceived{Question: question, Err: err}
		}
		return messages.AnswerReceived{Question: question, Response: resp, Titles: v.titles(resp.Sources)}
	}
}

// titles looks up display titles for the documents behind sources.
func (v *View) titles(sources []driving.Source) map[string]string {
	if v.documentService == nil || len(sources) == 0 {
		return nil
	}
	docs, err := v.documentService.List(v.ctx)
	if err != nil {
		return nil
	}
	titles := make(map[string]string, len(docs))
	for i := range docs {
		titles[docs[i].ID] = docs[i].Title
	}
	return titles
}

// handleAnswer records a completed question.
func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.thinking = false
	v.pending = ""
	now := time.Now()

	// The service keeps the question in history even when generation fails.
	v.turns = append(v.turns, domain.Turn{Role: domain.RoleUser, Text: msg.Question, Timestamp: now})

	if msg.Err != nil {
		v.setError(msg.Err)
		v.refreshTranscript()
		return
	}

	v.err = nil
	v.turns = append(v.turns, domain.Turn{Role: domain.RoleAssistant, Text: msg.Response.Answer, Timestamp: now})
	v.sources.SetSources(msg.Response.Sources)
	v.sources.SetTitles(msg.Titles)
	v.statusbar.SetModel(msg.Response.Model)
	v.statusbar.SetState(status.StateAnswered)
	v.layout()
	v.refreshTranscript()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// refreshTranscript re-renders the conversation and scrolls to the end.
func (v *View) refreshTranscript() {
	wrap := lipgloss.NewStyle().Width(max(v.width-4, 20))

	var b strings.Builder
	for _, turn := range v.turns {
		if turn.Role == domain.RoleUser {
			b.WriteString(v.styles.Question.Render("You"))
		} else {
			b.WriteString(v.styles.Answer.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(turn.Text))
		b.WriteString("\n\n")
	}
	if v.pending != "" {
		b.WriteString(v.styles.Question.Render("You"))
		b.WriteString("\n")
		b.WriteString(wrap.Render(v.pending))
		b.WriteString("\n\n")
		b.WriteString(v.styles.Muted.Render("..."))
	}
	if b.Len() == 0 {
		b.WriteString(v.styles.Muted.Render("Ask a question to start. Answers cite the passages they used."))
	}

	v.transcript.SetContent(b.String())
	v.transcript.GotoBottom()
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("docchat"), "", v.transcript.View(), "")

	if v.sources.Count() > 0 {
		sections = append(sections, v.sources.View(), "")
	}

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	}

	sections = append(sections, v.input.View(), v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.layout()
	v.refreshTranscript()
}

// layout allocates space to components.
func (v *View) layout() {
	v.input.SetWidth(v.width)
	v.statusbar.SetWidth(v.width)
	v.sources.SetDimensions(v.width, sourcesHeight)

	// Header, spacing, input box and status bar.
	reserved := 8
	if v.sources.Count() > 0 {
		reserved += sourcesHeight + 1
	}
	v.transcript.Width = v.width
	v.transcript.Height = max(v.height-reserved, 3)
}

// Reset clears the conversation and returns to input mode.
func (v *View) Reset() {
	v.sessionID = ""
	v.turns = nil
	v.pending = ""
	v.thinking = false
	v.err = nil
	v.focusInput = true
	v.input.Focus()
	v.input.Reset()
	v.sources.SetSources(nil)
	v.statusbar.Clear()
	v.statusbar.SetSession("")
	v.layout()
	v.refreshTranscript()
}

// SessionID returns the active session.
func (v *View) SessionID() string {
	return v.sessionID
}

// Turns returns the conversation shown in the transcript.
func (v *View) Turns() []domain.Turn {
	return v.turns
}

// Sources returns the sources of the last answer.
func (v *View) Sources() []driving.Source {
	return v.sources.Sources()
}

// Thinking reports whether a question is awaiting its answer.
func (v *View) Thinking() bool {
	return v.thinking
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}
