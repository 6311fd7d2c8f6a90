package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"contactdesk/internal/domain/contact"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// tableColumns pairs each header with the sort key of its column.
var tableColumns = []struct{ title, key string }{
	{"ID", "id"},
	{"NAME", "name"},
	{"PHONE", "phone"},
	{"EMAIL", "email"},
	{"AGE", "age"},
	{"IMAGE", "image_url"},
}

func contactRow(c contact.Contact) []string {
	return []string{c.ID, c.Name, c.Phone, c.Email, strconv.Itoa(c.Age), c.Image()}
}

// columnWidths fits every column to its widest cell.
func columnWidths(items []contact.Contact) []int {
	widths := make([]int, len(tableColumns))
	for i, col := range tableColumns {
		widths[i] = lipgloss.Width(col.title)
	}
	for _, c := range items {
		for i, cell := range contactRow(c) {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	return widths
}

// renderTable draws a static table of contacts.
func renderTable(items []contact.Contact) string {
	widths := columnWidths(items)
	var sb strings.Builder
	for i, col := range tableColumns {
		sb.WriteString(headerStyle.Width(widths[i] + 2).Render(col.title))
	}
	sb.WriteString("\n")
	for _, c := range items {
		for i, cell := range contactRow(c) {
			sb.WriteString(cellStyle.Width(widths[i] + 2).Render(cell))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// newContactTable builds the interactive table used by browse.
func newContactTable(pageSize int) table.Model {
	t := table.New(
		table.WithColumns(tableColumnsFor(nil)),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("241"))
	t.SetStyles(s)
	// Height counts the header, which is two lines with its border.
	t.SetHeight(pageSize + 2)
	return t
}

func tableColumnsFor(items []contact.Contact) []table.Column {
	widths := columnWidths(items)
	cols := make([]table.Column, len(tableColumns))
	for i, col := range tableColumns {
		cols[i] = table.Column{Title: col.title, Width: widths[i]}
	}
	return cols
}

func tableRows(items []contact.Contact) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, c := range items {
		rows = append(rows, table.Row(contactRow(c)))
	}
	return rows
}
