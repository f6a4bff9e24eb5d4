package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/tui"
	"github.com/twiced-technology-gmbh/opsdesk/internal/watcher"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workspace"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Resolve the user up front so a bad --as fails before the screen opens.
	if err := ws.View(ctx, currentUser(), noop); err != nil {
		return err
	}

	model := tui.NewBoard(ctx, ws, ws.Config(), currentUser())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go startTUIWatcher(ctx, ws, p)

	_, err = p.Run()
	return err
}

func startTUIWatcher(ctx context.Context, ws *workspace.Workspace, p *tea.Program) {
	w, err := watcher.New(ws.WatchPaths(), func() {
		p.Send(tui.ReloadMsg{})
	})
	if err != nil {
		return // non-fatal: TUI works without live refresh
	}
	defer w.Close()
	w.Run(ctx, nil)
}
