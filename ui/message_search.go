package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"suptui/model"
	"suptui/render"
)

type searchMatch struct {
	Sender  model.Sender
	Day     string
	Time    string
	Preview string
}

// searchConversation fuzzy-matches the query against every message in
// the painted conversation, most relevant first.
func searchConversation(groups []render.DayGroup, query string) []searchMatch {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var lines []render.Line
	var days []string
	var texts []string
	for _, g := range groups {
		for _, l := range g.Messages {
			lines = append(lines, l)
			days = append(days, g.Label)
			texts = append(texts, l.Text)
		}
	}

	matches := fuzzy.Find(query, texts)
	results := make([]searchMatch, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchMatch{
			Sender:  lines[m.Index].Sender,
			Day:     days[m.Index],
			Time:    lines[m.Index].TimeLabel,
			Preview: previewText(lines[m.Index].Text),
		})
	}
	return results
}

func previewText(text string) string {
	return runewidth.Truncate(strings.ReplaceAll(text, "\n", " "), 80, "…")
}

func (a AppView) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		a.showSearch = false
		a.searchInput.Blur()
		return a, nil

	case "down", "ctrl+j":
		if a.selectedSearchIdx < len(a.searchResults)-1 {
			a.selectedSearchIdx++
		}
		return a, nil

	case "up", "ctrl+k":
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	a.searchResults = searchConversation(a.groups, a.searchInput.Value())
	a.selectedSearchIdx = 0
	return a, cmd
}

func renderMessageSearch(searchInput textinput.Model, results []searchMatch, selectedIdx, width, height int) string {
	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render("🔍 Search Conversation")
	searchView := searchInput.View()

	resultsView := ""
	if len(results) == 0 {
		if searchInput.Value() == "" {
			resultsView = DimStyle.Render("Type to search the conversation...")
		} else {
			resultsView = DimStyle.Render("No matches found")
		}
	} else {
		// Border(2) + Padding(2) + Title(1) + Blank(1) + SearchInput(1) +
		// Blank(1) + "Found X matches:"(1) + Blank(1) + Footer(1) + Blank(1)
		fixedOverhead := 12
		availableLines := height - fixedOverhead
		if availableLines < 3 {
			availableLines = 3
		}

		linesPerResult := 3
		maxVisibleResults := availableLines / linesPerResult
		if maxVisibleResults < 1 {
			maxVisibleResults = 1
		}
		if maxVisibleResults > len(results) {
			maxVisibleResults = len(results)
		}

		resultsView = fmt.Sprintf("Found %d matches:\n\n", len(results))
		for i := 0; i < maxVisibleResults; i++ {
			match := results[i]

			roleStyle := VisitorStyle
			roleName := "You"
			if match.Sender == model.SenderOperator {
				roleStyle = OperatorStyle
				roleName = "Support"
			}

			matchText := fmt.Sprintf("%s [%s %s]\n  %s",
				roleStyle.Render(roleName),
				match.Day,
				match.Time,
				match.Preview,
			)

			if i == selectedIdx {
				matchText = SelectedStyle.Render("> " + matchText)
			} else {
				matchText = "  " + matchText
			}

			resultsView += matchText + "\n\n"
		}

		if maxVisibleResults < len(results) {
			resultsView += DimStyle.Render(fmt.Sprintf("↓ %d more below", len(results)-maxVisibleResults))
		}
	}

	footer := FormatFooter("Type", "to search", "↑/↓", "Navigate", "Esc", "Close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		searchView,
		"",
		resultsView,
		"",
		footer,
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(content))
}
