// Package bell is the terminal notification bell: a badge with the unread
// count when closed, a navigable notification panel when open. It reads
// through the cached read models and refreshes when push events arrive.
package bell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/capstonehub/notify/pkg/client/hub"
	"github.com/capstonehub/notify/pkg/client/readmodel"
	"github.com/capstonehub/notify/pkg/client/rest"
	"github.com/capstonehub/notify/pkg/events"
)

const requestTimeout = 10 * time.Second

// SyncMsg asks the bell to re-read its models. The composition root sends it
// whenever a push event has been reconciled into the cache.
type SyncMsg struct{}

// countLoadedMsg carries a freshly loaded unread count.
type countLoadedMsg struct {
	count int
}

// pageLoadedMsg carries a freshly loaded notification page.
type pageLoadedMsg struct {
	page *rest.NotificationPage
}

// errMsg carries a failed load; the bell keeps its last known state.
type errMsg struct {
	err error
}

var (
	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	unreadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	readStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// Model is the bell view.
type Model struct {
	svc *readmodel.Notifications
	mgr *hub.Manager

	open    bool
	loading bool
	spinner spinner.Model

	items  []events.Notification
	cursor int
	count  int
	status string

	width  int
	height int
}

// New creates a bell model over the given read models and hub manager. The
// manager is only consulted for connection state display; the model never
// opens or closes the socket itself.
func New(svc *readmodel.Notifications, mgr *hub.Manager) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		svc:     svc,
		mgr:     mgr,
		spinner: sp,
	}
}

// Init loads the unread count for the badge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCount())
}

// Update handles messages for the bell view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SyncMsg:
		// Push landed in the cache; re-read whatever is on screen.
		cmds := []tea.Cmd{m.loadCount()}
		if m.open {
			cmds = append(cmds, m.loadPage())
		}
		return m, tea.Batch(cmds...)

	case countLoadedMsg:
		m.count = msg.count
		return m, nil

	case pageLoadedMsg:
		m.loading = false
		m.items = append([]events.Notification(nil), msg.page.Items...)
		readmodel.SortForDisplay(m.items)
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case errMsg:
		m.loading = false
		m.status = "load failed: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "enter":
		if !m.open {
			return m.openPanel()
		}
		return m.activateSelected()

	case "b", "esc":
		if m.open {
			m.open = false
			m.status = ""
			return m, nil
		}
		if msg.String() == "b" {
			return m.openPanel()
		}
		return m, nil

	case "j", "down":
		if m.open && m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "k", "up":
		if m.open && m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "r":
		if !m.open {
			return m, nil
		}
		return m, m.markAllRead()
	}

	return m, nil
}

// openPanel flips the bell open and kicks off a page load.
func (m Model) openPanel() (tea.Model, tea.Cmd) {
	m.open = true
	m.loading = true
	m.status = ""
	m.cursor = 0
	return m, tea.Batch(m.spinner.Tick, m.loadPage())
}

// activateSelected marks the selected notification read without waiting on
// the server, closes the panel, and resolves the navigation target. Unknown
// entity types close the panel without navigating.
func (m Model) activateSelected() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.items) {
		return m, nil
	}
	n := m.items[m.cursor]

	var cmds []tea.Cmd
	if !n.IsRead {
		id := n.ID
		svc := m.svc
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := svc.MarkRead(ctx, id); err != nil {
				return errMsg{err}
			}
			return SyncMsg{}
		})
	}

	m.open = false
	m.status = ""
	if dest := routeFor(n); dest != "" {
		m.status = "→ " + dest
	}

	return m, tea.Batch(cmds...)
}

func (m Model) markAllRead() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := svc.MarkAllRead(ctx); err != nil {
			return errMsg{err}
		}
		return SyncMsg{}
	}
}

func (m Model) loadCount() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		count, err := svc.UnreadCount(ctx)
		if err != nil {
			return errMsg{err}
		}
		return countLoadedMsg{count: count}
	}
}

func (m Model) loadPage() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		page, err := svc.List(ctx, rest.ListQuery{})
		if err != nil {
			return errMsg{err}
		}
		return pageLoadedMsg{page: page}
	}
}

// routeFor maps a notification to the dashboard location it points at.
// Notifications about entities the bell does not know how to open return "".
func routeFor(n events.Notification) string {
	switch n.EntityType {
	case "topic":
		return "/topics/" + n.EntityID
	case "submission":
		return "/submissions/" + n.EntityID
	case "review":
		return "/reviews/" + n.EntityID
	default:
		return ""
	}
}

// View renders the bell.
func (m Model) View() string {
	if !m.open {
		return m.viewClosed()
	}
	return m.viewOpen()
}

func (m Model) viewClosed() string {
	bell := "🔔"
	if m.count > 0 {
		bell += " " + badgeStyle.Render(fmt.Sprintf("%d", m.count))
	}
	hint := statusStyle.Render("enter: open · q: quit")
	lines := []string{bell}
	if m.status != "" {
		lines = append(lines, statusStyle.Render(m.status))
	}
	lines = append(lines, m.connLine(), hint)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) viewOpen() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Notifications (%d unread)", m.count)))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " loading…")
	case len(m.items) == 0:
		b.WriteString(statusStyle.Render("nothing here yet"))
	default:
		for i, n := range m.items {
			prefix := "  "
			if i == m.cursor {
				prefix = cursorStyle.Render("> ")
			}

			line := n.Title
			if n.Message != "" {
				line += " — " + n.Message
			}
			if n.IsRead {
				line = readStyle.Render(line)
			} else {
				line = unreadStyle.Render("● " + line)
			}

			b.WriteString(prefix + line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}

	b.WriteString("\n" + m.connLine())
	b.WriteString("\n" + statusStyle.Render("enter: open item · r: mark all read · esc: close · q: quit"))

	return panelStyle.Render(b.String())
}

// connLine reports push channel health so a degraded pull-only session is
// visible to the user.
func (m Model) connLine() string {
	if m.mgr == nil {
		return statusStyle.Render("push: off")
	}
	return statusStyle.Render("push: " + m.mgr.State().String())
}
