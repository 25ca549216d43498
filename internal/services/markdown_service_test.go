package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toechat/pkg/chattypes"
)

func newMarkdownForTest(t *testing.T) *MarkdownService {
	t.Helper()
	markdown := NewMarkdownService()
	require.NoError(t, markdown.Initialize())
	return markdown
}

func TestMarkdownService_Render(t *testing.T) {
	markdown := newMarkdownForTest(t)

	rendered, err := markdown.Render("# Heading\n\nSome **bold** text.")
	require.NoError(t, err)
	assert.Contains(t, rendered, "Heading")
	assert.Contains(t, rendered, "bold")
}

func TestMarkdownService_RenderEmptyContent(t *testing.T) {
	markdown := newMarkdownForTest(t)

	_, err := markdown.Render("   ")
	assert.Error(t, err)
}

func TestMarkdownService_RenderUninitialized(t *testing.T) {
	markdown := NewMarkdownService()

	_, err := markdown.Render("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestMarkdownService_RenderMessage(t *testing.T) {
	markdown := newMarkdownForTest(t)

	t.Run("user message is shown verbatim", func(t *testing.T) {
		rendered, err := markdown.RenderMessage(chattypes.Message{
			Role:    chattypes.RoleUser,
			Content: "plain *not italic* text",
		})
		require.NoError(t, err)
		assert.Contains(t, rendered, "you")
		assert.Contains(t, rendered, "plain *not italic* text")
	})

	t.Run("assistant message goes through the renderer", func(t *testing.T) {
		rendered, err := markdown.RenderMessage(chattypes.Message{
			Role:    chattypes.RoleAssistant,
			Content: "reply body",
		})
		require.NoError(t, err)
		assert.Contains(t, rendered, "assistant")
		assert.Contains(t, rendered, "reply body")
	})

	t.Run("attachments are listed", func(t *testing.T) {
		rendered, err := markdown.RenderMessage(chattypes.Message{
			Role:    chattypes.RoleUser,
			Content: "see attached",
			Attachments: []chattypes.Attachment{
				{Name: "resume.pdf", MimeType: "application/pdf", SizeBytes: 1024},
			},
		})
		require.NoError(t, err)
		assert.Contains(t, rendered, "resume.pdf")
		assert.Contains(t, rendered, "1024 bytes")
	})
}

func TestMarkdownService_RenderTranscript(t *testing.T) {
	markdown := newMarkdownForTest(t)

	session := &chattypes.Session{
		Title: "Mock Interview",
		Messages: []chattypes.Message{
			{Role: chattypes.RoleUser, Content: "tell me about channels"},
			{Role: chattypes.RoleAssistant, Content: "channels connect goroutines"},
		},
	}

	rendered, err := markdown.RenderTranscript(session)
	require.NoError(t, err)
	assert.Contains(t, rendered, "Mock Interview")
	assert.Contains(t, rendered, "tell me about channels")
	assert.Contains(t, rendered, "channels connect goroutines")

	_, err = markdown.RenderTranscript(nil)
	assert.Error(t, err)
}
