package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"toechat/internal/logger"
	"toechat/pkg/chattypes"
)

// MarkdownService renders assistant replies and full transcripts for the
// terminal using Glamour.
type MarkdownService struct {
	initialized bool
	renderer    *glamour.TermRenderer
}

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	attachmentStyle     = lipgloss.NewStyle().Faint(true)
)

// NewMarkdownService creates a new MarkdownService instance.
func NewMarkdownService() *MarkdownService {
	return &MarkdownService{}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize sets up the MarkdownService with default configuration.
func (m *MarkdownService) Initialize() error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	m.renderer = renderer
	m.initialized = true

	logger.Debug("MarkdownService initialized successfully")
	return nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// RenderMessage renders one conversation turn with a styled role label.
// Assistant bodies go through the markdown renderer; user text is shown
// verbatim.
func (m *MarkdownService) RenderMessage(message chattypes.Message) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	var b strings.Builder

	switch message.Role {
	case chattypes.RoleAssistant:
		b.WriteString(assistantLabelStyle.Render("assistant"))
		b.WriteString("\n")
		if strings.TrimSpace(message.Content) != "" {
			body, err := m.renderer.Render(message.Content)
			if err != nil {
				return "", fmt.Errorf("failed to render assistant message: %w", err)
			}
			b.WriteString(body)
		}
	default:
		b.WriteString(userLabelStyle.Render("you"))
		b.WriteString("\n")
		if message.Content != "" {
			b.WriteString(message.Content)
			b.WriteString("\n")
		}
	}

	for _, attachment := range message.Attachments {
		b.WriteString(attachmentStyle.Render(fmt.Sprintf("  [attachment] %s (%s, %d bytes)",
			attachment.Name, attachment.MimeType, attachment.SizeBytes)))
		b.WriteString("\n")
	}

	return b.String(), nil
}

// RenderTranscript renders a whole session for the terminal, title first.
func (m *MarkdownService) RenderTranscript(session *chattypes.Session) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if session == nil {
		return "", fmt.Errorf("no session to render")
	}

	var b strings.Builder
	if session.Title != "" {
		b.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render(session.Title))
		b.WriteString("\n\n")
	}

	for _, message := range session.Messages {
		rendered, err := m.RenderMessage(message)
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
		b.WriteString("\n")
	}

	return b.String(), nil
}
