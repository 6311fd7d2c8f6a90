package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/views/listing"
)

const browseHelp = "/ filter  1-6 sort by column  n/p page  g/G first/last  x clear  r refresh  q quit"

func newBrowseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive listing with live filter, sort and paging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}

			f := newFeed()
			view, err := listing.New(api,
				listing.WithPageSize(a.pageSize()),
				listing.WithDebounce(a.debounce()),
				listing.OnUpdate(func(s listing.Snapshot) { f.send(snapshotMsg(s)) }),
			)
			if err != nil {
				return err
			}
			defer view.Close()
			defer f.stop()

			if err := view.Open(); err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(view, f),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil {
				if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
					return nil
				}
				return err
			}
			return nil
		},
	}
}

// snapshotMsg carries an applied listing response into the program.
type snapshotMsg listing.Snapshot

// feed hands listing callbacks to the program. A send blocks until the
// model takes the message or the program has stopped.
type feed struct {
	msgs chan tea.Msg
	done chan struct{}
}

func newFeed() *feed {
	return &feed{msgs: make(chan tea.Msg), done: make(chan struct{})}
}

func (f *feed) send(msg tea.Msg) {
	select {
	case f.msgs <- msg:
	case <-f.done:
	}
}

func (f *feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.msgs:
			return msg
		case <-f.done:
			return nil
		}
	}
}

func (f *feed) stop() { close(f.done) }

type browseModel struct {
	view   *listing.View
	feed   *feed
	table  table.Model
	filter textinput.Model
	snap   listing.Snapshot
	err    error
}

func newBrowseModel(view *listing.View, f *feed) browseModel {
	fi := textinput.New()
	fi.Prompt = "/ "
	fi.Placeholder = "filter by name"
	fi.CharLimit = 100
	fi.Width = 40

	snap := view.Snapshot()
	return browseModel{
		view:   view,
		feed:   f,
		table:  newContactTable(snap.Query.PageSize),
		filter: fi,
		snap:   snap,
	}
}

func (m browseModel) Init() tea.Cmd {
	return m.feed.next()
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.apply(listing.Snapshot(msg))
		return m, m.feed.next()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filter.Focused() {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	if m.filter.Focused() {
		m.filter, cmd = m.filter.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *browseModel) apply(s listing.Snapshot) {
	m.snap = s
	m.err = s.Err
	m.table.SetColumns(tableColumnsFor(s.Items))
	m.table.SetRows(tableRows(s.Items))
	if m.table.Cursor() >= len(s.Items) {
		m.table.SetCursor(0)
	}
}

// updateFilter feeds every edit to the view, which debounces the query.
func (m browseModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.filter.Blur()
		return m, nil
	}
	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if v := m.filter.Value(); v != before {
		m.err = m.view.SetFilter(v)
	}
	return m, cmd
}

func (m browseModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		return m, m.filter.Focus()
	case "n", "right", "pgdown":
		m.err = m.view.NextPage()
	case "p", "left", "pgup":
		m.err = m.view.PrevPage()
	case "g", "home":
		m.err = m.view.SetPage(0)
	case "G", "end":
		m.err = m.view.SetPage(max(0, m.view.Snapshot().TotalPages-1))
	case "r":
		m.err = m.view.Refresh()
	case "x":
		m.filter.SetValue("")
		m.err = m.view.ClearFilters()
	case "1", "2", "3", "4", "5", "6":
		m.err = m.sortBy(tableColumns[key[0]-'1'].key)
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// sortBy orders by key ascending, or flips the direction when key is
// already the ascending sort column.
func (m browseModel) sortBy(key string) error {
	q := m.view.Snapshot().Query
	dir := contact.SortAsc
	if q.SortKey == key && q.SortDir == contact.SortAsc {
		dir = contact.SortDesc
	}
	return m.view.SetSort(key, dir)
}

func (m browseModel) View() string {
	q := m.snap.Query
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Contacts"))
	sb.WriteString("  ")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("sort: %s %s", q.SortKey, q.SortDir)))
	if m.snap.Loading {
		sb.WriteString(mutedStyle.Render("  loading..."))
	}
	sb.WriteString("\n")
	sb.WriteString(m.filter.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.table.View())
	sb.WriteString("\n")
	sb.WriteString(pageStatus(q.Page, m.snap.TotalPages, m.snap.Total))
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(mutedStyle.Render(browseHelp))
	sb.WriteString("\n")
	return sb.String()
}
