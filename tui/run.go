package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"go-midivel/debug"
	"go-midivel/theme"
)

// Work runs a pipeline, reporting progress through send
type Work func(ctx context.Context, send func(tea.Msg)) (summary string, err error)

// Run shows the progress view while work runs. Console logging is muted
// for the duration so it does not tear the screen; a debug file, if
// enabled, still receives everything.
func Run(ctx context.Context, th *theme.Theme, title string, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(th, title, cancel))

	debug.SetOutput(io.Discard)
	defer debug.SetOutput(nil)

	errc := make(chan error, 1)
	go func() {
		summary, err := work(ctx, p.Send)
		p.Send(DoneMsg{Summary: summary, Err: err})
		errc <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	cancel()
	return <-errc
}
