// Command folio-viewer browses the run journal in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"folio/internal/config"
	"folio/internal/store"
	"folio/internal/util"
)

// Styles.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// Messages.
type runLoadedMsg struct {
	idx int
	run *store.RunRecord
	err error
}

// Model.
type model struct {
	db    *store.SQLiteStore
	runs  []store.RunRecord // journal listing, newest first
	idx   int
	style string

	current *store.RunRecord
	err     error

	viewport      viewport.Model
	ready         bool
	width, height int
}

func (m model) Init() tea.Cmd {
	if len(m.runs) == 0 {
		return nil
	}
	return m.load(0)
}

// load fetches runs[idx] with its report. Only the shown run is kept in
// memory.
func (m model) load(idx int) tea.Cmd {
	db, id := m.db, m.runs[idx].ID
	return func() tea.Msg {
		run, err := db.GetRun(context.Background(), id)
		return runLoadedMsg{idx: idx, run: run, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "left":
			return m, m.navigate(1)
		case "right":
			return m, m.navigate(-1)
		case "home":
			if len(m.runs) > 0 && m.idx != 0 {
				return m, m.load(0)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-2, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case runLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.idx = msg.idx
			m.current = msg.run
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoTop()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// navigate moves delta runs through the newest-first listing, so left goes
// back in time.
func (m model) navigate(delta int) tea.Cmd {
	next := m.idx + delta
	if next < 0 || next >= len(m.runs) {
		return nil
	}
	return m.load(next)
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerText := " folio  no runs saved "
	if len(m.runs) > 0 {
		r := m.runs[m.idx]
		headerText = fmt.Sprintf(" folio  #%d %s  %s..%s    [%d/%d] ",
			r.ID, r.Name, r.StartDate, r.EndDate, len(m.runs)-m.idx, len(m.runs))
	}
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  left/right older/newer  home latest  pgup/dn scroll"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := max(m.width-len(footerLeft)-len(footerRight), 0)
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	if m.err != nil {
		return errStyle.Render("error: " + m.err.Error())
	}
	if m.current == nil {
		return "\n  Nothing to show. Save a run with `folio run` first.\n"
	}
	md := m.current.Report
	if md == "" {
		md = fmt.Sprintf("# %s\n\nNo report stored.\n", m.current.Name)
	}
	if m.style == "none" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(m.width-4, 20)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	cfgPath := flag.String("config", config.Path(), "path to the YAML configuration")
	limit := flag.Int("n", 200, "number of most recent runs to browse (0 for all)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// The alt screen owns the terminal; logs are discarded.
	util.SetDefault(util.NewLoggerTo(io.Discard, cfg.Logging.Level, cfg.Logging.Format))

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.Debug("viewer starting", "runs", len(runs))

	style := cfg.Report.Style
	if style == "" {
		style = "dark"
	}
	p := tea.NewProgram(
		model{db: db, runs: runs, style: style},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
