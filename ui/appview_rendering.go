package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"suptui/model"
	"suptui/render"
)

func (a AppView) View() string {
	if !a.ready {
		return "\n  Initializing..."
	}

	if a.showSearch {
		return renderMessageSearch(a.searchInput, a.searchResults, a.selectedSearchIdx, a.width, a.height)
	}

	if !a.open {
		return a.renderLauncher()
	}

	typing := " "
	if a.operatorTyping {
		typing = TypingStyle.Render("Support is typing...")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		a.renderTitleBar(),
		a.viewport.View(),
		typing,
		a.input.View(),
		a.renderFooter(),
	)
}

// renderLauncher is the collapsed widget: a one-line bar in the corner
// of an otherwise empty screen.
func (a AppView) renderLauncher() string {
	bar := LauncherStyle.Render(runewidth.Truncate("💬 Support — press o to open", a.width-4, "…"))
	hint := StatusStyle.Render(FormatFooter("o", "Open chat", "Alt+Q", "Quit"))
	content := lipgloss.JoinVertical(lipgloss.Left, bar, hint)
	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Bottom, content)
}

func (a AppView) renderTitleBar() string {
	title := runewidth.Truncate("💬 Support", a.width-2, "…")
	return TitleStyle.Render(title)
}

func (a AppView) renderFooter() string {
	if a.statusError != "" {
		return ErrorStyle.Render(runewidth.Truncate(a.statusError, a.width-2, "…"))
	}
	return StatusStyle.Render(FormatFooter(
		"Enter", "Send",
		"Esc", "Minimize",
		"Alt+F", "Search",
		"Alt+Y", "Copy reply",
		"Alt+Q", "Quit",
	))
}

func (a *AppView) updateViewportContent(gotoBottom bool) {
	if !a.ready {
		return
	}
	if len(a.groups) == 0 {
		a.viewport.SetContent(DimStyle.Render("No messages yet. Say hello!"))
		return
	}

	var content strings.Builder
	width := a.viewport.Width

	for _, group := range a.groups {
		label := DimStyle.Render("── " + group.Label + " ──")
		content.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, label))
		content.WriteString("\n\n")

		for _, line := range group.Messages {
			timestamp := DimStyle.Render("[" + line.TimeLabel + "]")
			if line.Sender == model.SenderVisitor {
				content.WriteString(formatVisitorLine(timestamp, line))
			} else {
				content.WriteString(formatOperatorLine(timestamp, line))
			}
		}
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// formatVisitorLine renders the visitor's own messages with a vertical
// bar down the left edge.
func formatVisitorLine(timestamp string, line render.Line) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, VisitorStyle.Render("You")))
	for _, l := range strings.Split(line.Text, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, l))
	}
	result.WriteString("\n")

	return result.String()
}

func formatOperatorLine(timestamp string, line render.Line) string {
	return fmt.Sprintf("%s %s\n%s\n\n", timestamp, OperatorStyle.Render("Support"), line.Text)
}
