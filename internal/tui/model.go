package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rumble-backup/internal/utils"
)

const refreshInterval = 5 * time.Second

// Model represents the dashboard state
type Model struct {
	client  *Client
	status  *StatusResponse
	fetchAt time.Time
	err     error
	notice  string
	table   table.Model
	width   int
	height  int
	styles  Styles
}

// Styles holds all the styling for the TUI
type Styles struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	running   lipgloss.Style
	idle      lipgloss.Style
	errText   lipgloss.Style
	notice    lipgloss.Style
	statusBar lipgloss.Style
	table     lipgloss.Style
}

type statusMsg struct {
	status *StatusResponse
	err    error
}

type backupStartedMsg struct {
	err error
}

type tickMsg time.Time

// InitialModel creates the initial model for the dashboard
func InitialModel(client *Client) Model {
	columns := []table.Column{
		{Title: "Channel", Width: 24},
		{Title: "Videos", Width: 8},
		{Title: "Size", Width: 12},
		{Title: "Last Backup", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		running: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575")),
		idle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		errText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F56")),
		notice: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}

	return Model{
		client: client,
		table:  t,
		styles: styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tick())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statusMsg:
		m.fetchAt = time.Now()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		m.updateTable()
		return m, nil

	case backupStartedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = "Backup run started"
		}
		return m, m.fetchStatus()

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "r":
			m.notice = ""
			return m, m.fetchStatus()

		case "b":
			m.notice = ""
			return m, m.startBackup()
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	title := m.styles.title.Render("Rumble Backup")
	subtitle := m.styles.subtitle.Render(m.client.baseURL)

	var body []string
	body = append(body, title, subtitle, m.renderRunState(), "")

	if m.err != nil {
		body = append(body, m.styles.errText.Render("Server unreachable: "+m.err.Error()), "")
	} else {
		body = append(body, m.styles.table.Render(m.table.View()), "")
	}

	if m.notice != "" {
		body = append(body, m.styles.notice.Render(m.notice), "")
	}

	body = append(body, m.styles.statusBar.Render("r refresh • b start backup • q quit"))

	content := lipgloss.JoinVertical(lipgloss.Left, body...)
	if m.width == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderRunState() string {
	if m.status == nil {
		return m.styles.idle.Render("Loading...")
	}
	if m.status.Running {
		line := "Backup running"
		if m.status.Channel != "" {
			line += ": " + m.status.Channel
		}
		if m.status.StartedAt != nil {
			line += fmt.Sprintf(" (%s elapsed)", utils.FormatDuration(time.Since(*m.status.StartedAt)))
		}
		return m.styles.running.Render(line)
	}

	parts := []string{"Idle"}
	if m.status.LastRun != nil {
		parts = append(parts, "last run "+m.status.LastRun.Format("2006-01-02 15:04"))
	}
	if m.status.LastError != "" {
		parts = append(parts, "last error: "+m.status.LastError)
	}
	return m.styles.idle.Render(strings.Join(parts, " • "))
}

func (m Model) fetchStatus() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.Status()
		return statusMsg{status: status, err: err}
	}
}

func (m Model) startBackup() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return backupStartedMsg{err: client.StartBackup()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) updateTable() {
	var rows []table.Row
	for _, ch := range m.status.Channels {
		lastBackup := "never"
		if ch.LastBackup != nil {
			lastBackup = ch.LastBackup.Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{
			ch.ID,
			fmt.Sprintf("%d", ch.DownloadedCount),
			utils.FormatBytes(ch.TotalSize),
			lastBackup,
		})
	}
	m.table.SetRows(rows)
}
