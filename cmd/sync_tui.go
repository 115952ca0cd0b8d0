package cmd

import (
	"fmt"

	"packsync/syncer"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// syncEventMsg carries one progress event from the reconciler.
type syncEventMsg syncer.Event

// syncDoneMsg is sent once the reconciler has finished and the event
// channel is drained.
type syncDoneMsg struct {
	result syncer.Result
}

// syncModel controls the UI for the sync command
type syncModel struct {
	spinner  spinner.Model
	bar      progress.Model
	reporter *syncer.Reporter
	resultCh chan syncer.Result

	stage   string
	current int
	total   int
	item    string
	done    bool
	result  syncer.Result
}

func initialSyncModel() syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return syncModel{
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient()),
		reporter: syncer.NewReporter(100),
		resultCh: make(chan syncer.Result, 1),
		stage:    "Starting...",
	}
}

// runSyncTUI drives fn inside a bubbletea program that renders its progress
// events. Falls back to a plain run when the terminal refuses the TUI.
func runSyncTUI(fn func(progress *syncer.Reporter) syncer.Result) syncer.Result {
	m := initialSyncModel()

	go func() {
		res := fn(m.reporter)
		m.reporter.Close()
		m.resultCh <- res
	}()

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		// Headless terminal: the reconciler goroutine still runs to
		// completion, just without rendering.
		return <-m.resultCh
	}
	return final.(syncModel).result
}

func (m syncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivity())
}

func (m syncModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.reporter.Events()
		if !ok {
			return syncDoneMsg{result: <-m.resultCh}
		}
		return syncEventMsg(event)
	}
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case syncEventMsg:
		m.stage = stageLabel(msg.Stage)
		m.current = msg.Current
		m.total = msg.Total
		m.item = msg.Item
		return m, m.waitForActivity()

	case syncDoneMsg:
		m.done = true
		m.result = msg.result
		return m, tea.Quit
	}

	return m, nil
}

func stageLabel(stage string) string {
	switch stage {
	case syncer.StageClear:
		return "Clearing undeclared files"
	case syncer.StageMods:
		return "Applying mods"
	case syncer.StageOverrides:
		return "Copying config overrides"
	case syncer.StageRestore:
		return "Restoring mods"
	default:
		return "Working"
	}
}

func (m syncModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	s := fmt.Sprintf("\n %s %s\n", symbol, m.stage)

	if m.total > 0 {
		s += fmt.Sprintf("\n %s %d/%d", m.bar.ViewAs(float64(m.current)/float64(m.total)), m.current, m.total)
		if m.item != "" && !m.done {
			s += fmt.Sprintf("  %s", m.item)
		}
		s += "\n"
	}

	if m.done {
		summary := fmt.Sprintf("Downloaded %d, skipped %d, configs copied %d",
			m.result.ModsDownloaded, m.result.ModsSkipped, m.result.ConfigsCopied)
		if len(m.result.Errors) > 0 {
			summary += fmt.Sprintf(", %d errors", len(m.result.Errors))
		}
		s += "\n " + lipgloss.NewStyle().Bold(true).Render(summary) + "\n"
	}

	return s
}
