package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/scrumbot/internal/train"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

type startMsg int

type stepMsg train.Progress

type evalMsg train.Evaluation

type doneMsg struct {
	res *train.Result
	err error
}

// programObserver forwards loop events to the UI.
type programObserver struct {
	p *tea.Program
}

func (o programObserver) OnStart(total int)              { o.p.Send(startMsg(total)) }
func (o programObserver) OnStep(p train.Progress)        { o.p.Send(stepMsg(p)) }
func (o programObserver) OnEvaluate(ev train.Evaluation) { o.p.Send(evalMsg(ev)) }
func (o programObserver) OnCheckpoint(string)            {}

// trainingModel is the bubbletea model for a training run.
type trainingModel struct {
	title    string
	progress progress.Model
	theme    Theme
	started  time.Time

	total    int
	current  train.Progress
	lastEval *train.Evaluation

	cancel   context.CancelFunc
	stopping bool
	done     bool
	res      *train.Result
	err      error
}

func newTrainingModel(title string, cancel context.CancelFunc) trainingModel {
	return trainingModel{
		title: title,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme:   defaultTheme,
		started: time.Now(),
		cancel:  cancel,
	}
}

// Init starts the progress bar.
func (m trainingModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m trainingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The loop stops between batches and reports back with doneMsg.
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}

	case startMsg:
		m.total = int(msg)

	case stepMsg:
		m.current = train.Progress(msg)
		m.total = msg.TotalSteps

	case evalMsg:
		ev := train.Evaluation(msg)
		m.lastEval = &ev

	case doneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m trainingModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m trainingModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.current.Step) / float64(m.total)
	}

	state := "training"
	if m.stopping {
		state = "stopping"
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s %s]", m.title, state))
	counts := fmt.Sprintf("%d/%d steps", m.current.Step, m.total)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(pct), counts)
	fmt.Fprintf(&b, "  epoch %d/%d  loss %.4f  lr %.5f  %s\n",
		m.current.Epoch, m.current.Epochs, m.current.Loss, m.current.LearningRate,
		time.Since(m.started).Round(time.Second))
	if m.lastEval != nil {
		fmt.Fprintf(&b, "  eval score %.4f  loss %.4f\n", m.lastEval.Score, m.lastEval.Loss)
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to stop and keep the best checkpoint"))
	b.WriteString("\n")
	return b.String()
}

func (m trainingModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Training failed: %s\n", m.err))
	}
	if m.res != nil && m.res.Cancelled {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nTraining stopped after %d steps.\n", m.res.Steps))
	}
	return m.theme.completedStyle().Render("✓ Training completed") + "\n"
}

// trainFunc runs a training job reporting to obs.
type trainFunc func(ctx context.Context, obs train.Observer) (*train.Result, error)

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runTraining runs fn with the progress UI on a terminal and with plain log
// output otherwise. Ctrl+C cancels the run in both modes.
func runTraining(ctx context.Context, title string, extra train.Observer, fn trainFunc) (*train.Result, error) {
	if !isTerminal() {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return fn(ctx, extra)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTrainingModel(title, cancel))
	results := make(chan doneMsg, 1)
	go func() {
		res, err := fn(ctx, train.Observers(programObserver{p}, extra))
		results <- doneMsg{res: res, err: err}
		p.Send(doneMsg{res: res, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		done := <-results
		if done.err != nil {
			return done.res, done.err
		}
		return done.res, fmt.Errorf("progress UI error: %w", err)
	}
	done := <-results
	return done.res, done.err
}
