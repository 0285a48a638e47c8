package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/corpus"
	"github.com/Beastly713/parsefuzz/pkg/harness"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Styles
var (
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	defectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	benignStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	detailStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	docStyle      = lipgloss.NewStyle().Margin(1, 2)
)

var triageSaveDir string

type triageItem struct {
	path    string
	outcome *harness.Outcome
	err     error
}

type triageModel struct {
	h        *harness.Harness
	dir      string
	saveDir  string
	items    []triageItem
	cursor   int
	detail   viewport.Model
	status   string
	quitting bool
}

type evaluatedMsg struct {
	index   int
	outcome harness.Outcome
	err     error
}

type statusMsg string

func newTriageModel(h *harness.Harness, dir, saveDir string) (triageModel, error) {
	m := triageModel{
		h:       h,
		dir:     dir,
		saveDir: saveDir,
		detail:  viewport.New(80, 12),
		status:  "Navigate: ↑/↓ | Enter: Replay | 's': Save Report | 'r': Reload | 'q': Quit",
	}
	if err := m.load(); err != nil {
		return m, err
	}
	return m, nil
}

func (m *triageModel) load() error {
	paths, err := corpus.Walk(m.dir)
	if err != nil {
		return err
	}
	m.items = make([]triageItem, len(paths))
	for i, p := range paths {
		m.items[i] = triageItem{path: p}
	}
	m.cursor = 0
	m.detail.SetContent("")
	return nil
}

func (m triageModel) Init() tea.Cmd {
	return nil
}

func (m triageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.detail.Width = msg.Width - 8
		m.detail.Height = max(msg.Height/2, 5)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.showDetail()
			}

		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
				m.showDetail()
			}

		case "enter":
			// Evaluated inline: output redirection is process-wide, so
			// replays must not overlap.
			if len(m.items) > 0 {
				return m.Update(m.evaluate(m.cursor))
			}

		case "s":
			return m, m.save(m.cursor)

		case "r":
			if err := m.load(); err != nil {
				m.status = fmt.Sprintf("Error: %v", err)
			}

		default:
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

	case evaluatedMsg:
		if msg.index < len(m.items) {
			out := msg.outcome
			m.items[msg.index].outcome = &out
			m.items[msg.index].err = msg.err
			m.showDetail()
		}

	case statusMsg:
		m.status = string(msg)
	}

	return m, nil
}

func (m triageModel) evaluate(i int) evaluatedMsg {
	a, err := corpus.Load(m.items[i].path)
	if err != nil {
		return evaluatedMsg{index: i, err: err}
	}
	o, err := m.h.Evaluate(a.Data)
	return evaluatedMsg{index: i, outcome: o, err: err}
}

func (m triageModel) save(i int) tea.Cmd {
	if i >= len(m.items) {
		return nil
	}
	item := m.items[i]
	dir := m.saveDir
	return func() tea.Msg {
		if item.outcome == nil || !item.outcome.Defect() {
			return statusMsg("Only replayed defects can be saved.")
		}
		a, err := corpus.Load(item.path)
		if err != nil {
			return statusMsg(fmt.Sprintf("Error: %v", err))
		}
		path, err := saveReport(dir, a, *item.outcome)
		if err != nil {
			return statusMsg(fmt.Sprintf("Error: %v", err))
		}
		return statusMsg("Saved " + path)
	}
}

func (m *triageModel) showDetail() {
	if m.cursor >= len(m.items) {
		m.detail.SetContent("")
		return
	}
	item := m.items[m.cursor]
	switch {
	case item.err != nil:
		m.detail.SetContent(fmt.Sprintf("Error: %v", item.err))
	case item.outcome == nil:
		m.detail.SetContent("Press enter to replay.")
	default:
		m.detail.SetContent(detailText(*item.outcome))
	}
}

func detailText(o harness.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "parser:  %s (index %d)\n", o.Testcase.ParserID, o.Testcase.Index)
	fmt.Fprintf(&b, "text:    %q\n", o.Testcase.Text)
	if o.Fault == nil {
		fmt.Fprintf(&b, "verdict: %s\n", harness.Accepted)
		return b.String()
	}
	fmt.Fprintf(&b, "verdict: %s\n", o.Verdict)
	fmt.Fprintf(&b, "kind:    %s\n", o.Fault.Kind)
	fmt.Fprintf(&b, "message: %s\n", o.Fault.Message)
	if len(o.Fault.Stack) > 0 {
		fmt.Fprintf(&b, "\n%s", o.Fault.Stack)
	}
	return b.String()
}

func verdictLabel(o *harness.Outcome) string {
	switch {
	case o == nil:
		return "       "
	case o.Fault == nil:
		return acceptedStyle.Render("ok     ")
	case o.Verdict == classify.Defect:
		return defectStyle.Render("DEFECT ")
	}
	return benignStyle.Render("benign ")
}

func (m triageModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	s := fmt.Sprintf("Artifacts: %s\n\n", m.dir)
	if len(m.items) == 0 {
		s += "  (no artifacts)\n"
	}
	for i, item := range m.items {
		cursor := " "
		if m.cursor == i {
			cursor = cursorStyle.Render(">")
		}
		name, err := filepath.Rel(m.dir, item.path)
		if err != nil {
			name = item.path
		}
		s += fmt.Sprintf("%s %s %s\n", cursor, verdictLabel(item.outcome), name)
	}

	s += "\n" + detailStyle.Render(m.detail.View()) + "\n"
	s += fmt.Sprintf("\n%s\n", m.status)
	return docStyle.Render(s)
}

var triageCmd = &cobra.Command{
	Use:   "triage [dir]",
	Short: "Interactive terminal UI for triaging crash artifacts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("triage needs an interactive terminal; use replay instead")
		}
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		h, err := newHarness()
		if err != nil {
			return err
		}
		m, err := newTriageModel(h, dir, triageSaveDir)
		if err != nil {
			return err
		}
		p := tea.NewProgram(m)
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)

	triageCmd.Flags().StringVarP(&triageSaveDir, "save", "s", "reports", "Directory for reports saved with 's'")
}
