package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toechat/pkg/chattypes"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Token: "secret-token"})
}

func TestClient_GetUsage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/usage", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"normal_chats_used": 3,
			"interview_chats_used": 1,
			"normal_chat_limit": 10,
			"interview_chat_limit": 5,
			"reset_date": "2025-02-01T00:00:00Z"
		}`))
	})

	usage, err := client.GetUsage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, usage[chattypes.CategoryNormal].Used)
	assert.Equal(t, 10, usage[chattypes.CategoryNormal].Limit)
	assert.Equal(t, 1, usage[chattypes.CategoryInterview].Used)
	assert.Equal(t, 5, usage[chattypes.CategoryInterview].Limit)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), usage[chattypes.CategoryNormal].ResetDate)
}

func TestClient_CreateSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chats/normal", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Tell me about goroutines", body["title"])
		assert.Empty(t, body["conversation"])

		_, _ = w.Write([]byte(`{
			"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			"title": "Tell me about goroutines",
			"conversation": []
		}`))
	})

	session, err := client.CreateSession(context.Background(), chattypes.CategoryNormal, "Tell me about goroutines")
	require.NoError(t, err)

	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", session.ID)
	assert.Equal(t, chattypes.CategoryNormal, session.Category)
	assert.Empty(t, session.Messages)
}

func TestClient_GetSessionNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Chat not found"}`))
	})

	_, err := client.GetSession(context.Background(), chattypes.CategoryNormal, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.Error(t, err)
	assert.ErrorIs(t, err, chattypes.ErrNotFound)
}

func TestClient_CreateSessionLimitReached(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail": "Usage limit reached"}`))
	})

	_, err := client.CreateSession(context.Background(), chattypes.CategoryNormal, "blocked")
	require.Error(t, err)
	assert.ErrorIs(t, err, chattypes.ErrUsageLimitReached)
}

func TestClient_ServerErrorBecomesTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "database exploded"}`))
	})

	_, err := client.GetUsage(context.Background())
	require.Error(t, err)
	assert.True(t, chattypes.IsTransportError(err))
	assert.Contains(t, err.Error(), "database exploded")
}

func TestClient_UpdateSessionSendsTranscript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/chats/interview/6ba7b810-9dad-11d1-80b4-00c04fd430c8", r.URL.Path)

		var body struct {
			Title        string              `json:"title"`
			Conversation []chattypes.Message `json:"conversation"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "System design drill", body.Title)
		require.Len(t, body.Conversation, 2)
		assert.Equal(t, "design a url shortener", body.Conversation[0].Content)

		_, _ = w.Write([]byte(`{
			"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			"title": "System design drill"
		}`))
	})

	session := &chattypes.Session{
		ID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Title: "System design drill",
		Messages: []chattypes.Message{
			{ID: "m1", Role: chattypes.RoleUser, Content: "design a url shortener"},
			{ID: "m2", Role: chattypes.RoleAssistant, Content: "start with the write path"},
		},
	}

	stored, err := client.UpdateSession(context.Background(), chattypes.CategoryInterview, session)
	require.NoError(t, err)
	assert.Equal(t, chattypes.CategoryInterview, stored.Category)
}

func TestClient_ListSessionsPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/normal", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))

		_, _ = w.Write([]byte(`{
			"chats": [{"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "title": "One"}],
			"total": 21,
			"page": 2,
			"per_page": 20
		}`))
	})

	page, err := client.ListSessions(context.Background(), chattypes.CategoryNormal, 2, 20)
	require.NoError(t, err)

	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, chattypes.CategoryNormal, page.Sessions[0].Category)
}

func TestClient_DeleteSession(t *testing.T) {
	var method, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.DeleteSession(context.Background(), chattypes.CategoryNormal, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/chats/normal/6ba7b810-9dad-11d1-80b4-00c04fd430c8", path)
}

func TestClient_CompletionEndpointPerCategory(t *testing.T) {
	tests := []struct {
		category chattypes.Category
		path     string
	}{
		{chattypes.CategoryNormal, "/ai/chat/completion"},
		{chattypes.CategoryInterview, "/ai/interview/chat"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			var gotPath string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = w.Write([]byte(`{
					"message": {"id": "a1", "role": "assistant", "content": "hello"},
					"usage": {"total_tokens": 42},
					"cost": 0.0001
				}`))
			})

			resp, err := client.Completion(context.Background(), tt.category, chattypes.CompletionRequest{Content: "hi"})
			require.NoError(t, err)

			assert.Equal(t, tt.path, gotPath)
			assert.Equal(t, "hello", resp.Message.Content)
			assert.Equal(t, 42, resp.TokensUsed)
		})
	}
}

func TestClient_CompletionCarriesContextWindow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string              `json:"content"`
			History []chattypes.Message `json:"conversation_history"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "follow up", body.Content)
		require.Len(t, body.History, 2)

		_, _ = w.Write([]byte(`{"message": {"id": "a1", "role": "assistant", "content": "ok"}}`))
	})

	_, err := client.Completion(context.Background(), chattypes.CategoryNormal, chattypes.CompletionRequest{
		Content: "follow up",
		ContextWindow: []chattypes.Message{
			{ID: "m1", Role: chattypes.RoleUser, Content: "first"},
			{ID: "m2", Role: chattypes.RoleAssistant, Content: "second"},
		},
	})
	require.NoError(t, err)
}

func TestClient_UploadFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		parts := r.MultipartForm.File["files"]
		require.Len(t, parts, 2)
		assert.Equal(t, "resume.pdf", parts[0].Filename)
		assert.Equal(t, "notes.txt", parts[1].Filename)

		_, _ = w.Write([]byte(`{
			"files": [
				{"id": "file-1", "name": "resume.pdf", "mime_type": "application/pdf", "size_bytes": 9},
				{"id": "file-2", "name": "notes.txt", "mime_type": "text/plain", "size_bytes": 5}
			]
		}`))
	})

	attachments, err := client.UploadFiles(context.Background(), []chattypes.FileUpload{
		{Name: "resume.pdf", MimeType: "application/pdf", Data: []byte("pdf bytes")},
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("notes")},
	})
	require.NoError(t, err)

	require.Len(t, attachments, 2)
	assert.Equal(t, "file-1", attachments[0].Reference)
	assert.Equal(t, "resume.pdf", attachments[0].Name)
	assert.Equal(t, int64(5), attachments[1].SizeBytes)
}

func TestClient_UploadFilesCapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent")
	})

	files := make([]chattypes.FileUpload, 6)
	for i := range files {
		files[i] = chattypes.FileUpload{Name: "f.txt", Data: []byte("x")}
	}

	_, err := client.UploadFiles(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, chattypes.ErrUploadFailed)
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.GetUsage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}
