package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/stackzner/internal/deploy"
)

// Run drives the dashboard while fn executes in the background. The
// observer handed to fn forwards run events into the program, so the
// model renders live progress. Run returns fn's error, or the terminal
// error if the UI itself failed.
func Run(m Model, fn func(obs deploy.Observer) error) error {
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		if err := fn(&programObserver{p: p}); err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("terminal ui error: %w", err)
	}

	fm := finalModel.(Model)
	if fm.Err != nil {
		return fm.Err
	}
	return nil
}

// programObserver bridges deploy events into Bubble Tea messages.
type programObserver struct {
	p *tea.Program
}

func (o *programObserver) Printf(format string, v ...interface{}) {
	o.p.Send(LogMsg{Line: fmt.Sprintf(format, v...)})
}

func (o *programObserver) Event(e deploy.Event) {
	o.p.Send(EventMsg{Event: e})
}

func (o *programObserver) Progress(phase string, current, total int) {
	o.p.Send(ProgressMsg{Phase: phase, Current: current, Total: total})
}
