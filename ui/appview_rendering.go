package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"coachtui/config"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

func (a *AppView) updateViewportContent(gotoBottom bool) {
	if len(a.dataModel.Messages) == 0 {
		a.viewport.SetContent("No messages yet. Ask your coach anything!")
		return
	}

	var content strings.Builder

	for _, msg := range a.dataModel.Messages {
		content.WriteString(a.formatMessage(msg))
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// updateStreamingViewport renders the transcript plus the in-flight response.
func (a *AppView) updateStreamingViewport() {
	var content strings.Builder

	for _, msg := range a.dataModel.Messages {
		content.WriteString(a.formatMessage(msg))
	}

	timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
	role := CoachStyle.Render("Coach")

	// Spinner until the first delta, then text with a cursor.
	streamContent := a.loadingSpinner.View()
	if a.dataModel.StreamAccum != "" {
		streamContent = a.dataModel.StreamAccum + "▋"
	}

	content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, role, streamContent))

	a.viewport.SetContent(content.String())
	a.viewport.GotoBottom()
}

func (a *AppView) formatMessage(msg Message) string {
	timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

	var roleStyle = DimStyle
	var roleName string
	switch msg.Role {
	case "user":
		roleStyle = UserStyle
		roleName = "You"
	case "assistant":
		roleStyle = CoachStyle
		roleName = "Coach"
	default:
		roleStyle = DimStyle
		roleName = "System"
	}

	role := roleStyle.Render(roleName)
	rendered := msg.Rendered
	if rendered == "" {
		rendered = msg.Content
	}

	if msg.Role == "user" {
		return formatUserMessage(timestamp, role, rendered)
	}

	return fmt.Sprintf("%s %s\n%s\n\n", timestamp, role, rendered)
}

func formatUserMessage(timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	lines := strings.Split(content, "\n")

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, role))

	for _, line := range lines {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}

	result.WriteString("\n")

	return result.String()
}

func (a AppView) renderMarkdownAsync(messageIndex int, content string) tea.Cmd {
	width := a.width
	return func() tea.Msg {
		startTime := time.Now()

		// Strip markdown link syntax so links appear as plain URLs the
		// terminal emulator can detect.
		content = preprocessLinks(content)

		// Autolink disabled keeps plain URLs as plain text.
		defaultExt := markdown.Extensions()
		customExt := defaultExt &^ parser.Autolink
		p := parser.NewWithExtensions(customExt)
		r := markdown.NewRenderer(width-4, 0)
		doc := p.Parse([]byte(content))
		rendered := gomarkdown.Render(doc, r)

		processed := fixMarkdownLinks(fixInlineCode(string(rendered)))

		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] markdown rendered for message %d in %v", messageIndex, time.Since(startTime))
		}

		return markdownRenderedMsg{
			MessageIndex: messageIndex,
			Rendered:     processed,
		}
	}
}

func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

func fixInlineCode(s string) string {
	// Blue background + italic reads badly on most themes; plain red text.
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// Skip code blocks (┃ prefix from the renderer)
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}
	return strings.Join(lines, "\n")
}
