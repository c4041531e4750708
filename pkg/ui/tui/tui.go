package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"mediafetch/pkg/events"
)

// TUI runs the dashboard and implements events.Reporter. Start must be
// running before events are emitted, since Emit blocks until the program
// accepts the message.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance. Extra program options are applied after
// the alternate screen option.
func NewTUI(maxConcurrent int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(maxConcurrent)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)

	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// OnQuit registers f to run when the user quits, typically a context cancel
func (t *TUI) OnQuit(f func()) {
	t.model.onQuit = f
}

// Start runs the program until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Emit forwards an engine event to the program
func (t *TUI) Emit(e events.Event) {
	t.program.Send(EventMsg{Event: e})
}

// Finish tells the dashboard that every job has returned
func (t *TUI) Finish(err error) {
	t.program.Send(FinishedMsg{Err: err})
}
