package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/deckhand-io/deckhand/types"
)

// phaseState tracks what the watch view knows about one phase.
type phaseState struct {
	name      string
	started   bool
	finished  bool
	succeeded int
	failed    int
}

// WatchModel is a Bubble Tea model rendering live run progress from the
// notification event stream.
type WatchModel struct {
	meta    *types.RunMeta
	events  <-chan types.Event
	spin    spinner.Model
	phases  []phaseState
	status  types.RunStatus
	reason  string
	done    bool
	aborted bool

	artifactCount int
	quitting      bool
}

// eventMsg wraps one notification event for the Bubble Tea update loop.
type eventMsg types.Event

// streamClosedMsg signals the event channel was closed by the pipeline.
type streamClosedMsg struct{}

// NewWatchModel creates a watch model over the run's event channel.
// phaseNames must list the plan's phases in pipeline order.
func NewWatchModel(meta *types.RunMeta, phaseNames []string, events <-chan types.Event) WatchModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = TitleStyle

	phases := make([]phaseState, len(phaseNames))
	for i, name := range phaseNames {
		phases[i] = phaseState{name: name}
	}

	return WatchModel{
		meta:   meta,
		events: events,
		spin:   spin,
		phases: phases,
		status: types.RunRunning,
	}
}

// waitForEvent reads the next notification event.
func (m WatchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, watchKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		m = m.apply(types.Event(msg))
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one notification event into the view state.
func (m WatchModel) apply(event types.Event) WatchModel {
	switch event.Type {
	case types.EventPhaseStarted:
		if p := m.phase(event.Phase); p != nil {
			p.started = true
		}

	case types.EventPhaseFinished:
		if p := m.phase(event.Phase); p != nil {
			p.finished = true
			p.succeeded = event.Succeeded
			p.failed = event.Failed
		}

	case types.EventRunFailed:
		m.aborted = true
		m.reason = event.Reason

	case types.EventRunFinalized:
		m.done = true
		m.status = event.Status
		m.artifactCount = len(event.Artifacts)
	}
	return m
}

func (m *WatchModel) phase(name string) *phaseState {
	for i := range m.phases {
		if m.phases[i].name == name {
			return &m.phases[i]
		}
	}
	return nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("deckhand · %s / %s", m.meta.Sector, m.meta.Region)))
	b.WriteString("\n\n")

	for i := range m.phases {
		b.WriteString(m.renderPhase(&m.phases[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.aborted && !m.done:
		b.WriteString(ErrorStyle.Render("aborting: " + m.reason))
	case m.done:
		b.WriteString(m.renderFinal())
	default:
		b.WriteString(m.spin.View() + " running")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to detach (the run keeps going)"))
	return b.String()
}

func (m WatchModel) renderPhase(p *phaseState) string {
	label := LabelStyle.Render(p.name)
	switch {
	case p.finished && p.failed == 0:
		return fmt.Sprintf("  %s %s", label, SuccessStyle.Render(fmt.Sprintf("done (%d tasks)", p.succeeded)))
	case p.finished:
		return fmt.Sprintf("  %s %s", label,
			WarningStyle.Render(fmt.Sprintf("done (%d ok, %d failed)", p.succeeded, p.failed)))
	case p.started:
		return fmt.Sprintf("  %s %s running", label, m.spin.View())
	case m.aborted || m.done:
		return fmt.Sprintf("  %s %s", label, ErrorStyle.Render("skipped"))
	default:
		return fmt.Sprintf("  %s %s", label, PendingStyle.Render("pending"))
	}
}

func (m WatchModel) renderFinal() string {
	switch m.status {
	case types.RunSuccess:
		return SuccessStyle.Render(fmt.Sprintf("success · %d artifacts", m.artifactCount))
	case types.RunPartialSuccess:
		return WarningStyle.Render(fmt.Sprintf("partial success · %d artifacts", m.artifactCount))
	default:
		if m.reason != "" {
			return ErrorStyle.Render("failed · " + m.reason)
		}
		return ErrorStyle.Render("failed")
	}
}

// keyMap defines the watch view key bindings.
type keyMap struct {
	Quit key.Binding
}

var watchKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunWatch runs the watch TUI until the event stream closes or the user
// detaches. Detaching never cancels the run.
func RunWatch(meta *types.RunMeta, phaseNames []string, events <-chan types.Event) error {
	p := tea.NewProgram(NewWatchModel(meta, phaseNames, events))
	_, err := p.Run()
	return err
}
