package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/medrag/services/providers"
)

func TestSupabaseStore_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/documents/docs/abc/notes.txt", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, "false", r.Header.Get("x-upsert"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"documents/docs/abc/notes.txt","Id":"7f1c2b5e-0000-4000-8000-000000000001"}`))
	}))
	defer server.Close()

	store := NewSupabaseStore(Config{URL: server.URL + "/", Key: "service-key", Bucket: "documents"}, zap.NewNop())
	require.NoError(t, store.Upload(context.Background(), "docs/abc/notes.txt", []byte("hello"), "text/plain"))
}

func TestSupabaseStore_Upload_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "duplicate object", status: http.StatusBadRequest, body: `{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"statusCode":"500","error":"internal","message":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			store := NewSupabaseStore(Config{URL: server.URL, Key: "k", Bucket: "documents"}, zap.NewNop())
			err := store.Upload(context.Background(), "docs/x/a.txt", []byte("x"), "")
			require.Error(t, err)

			var provErr *providers.ProviderError
			require.True(t, errors.As(err, &provErr))
			assert.Equal(t, "supabase-storage", provErr.Provider)
			assert.False(t, provErr.Retryable)
		})
	}
}

func TestSupabaseStore_Upload_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	store := NewSupabaseStore(Config{URL: server.URL, Key: "k", Bucket: "documents", Timeout: 50 * time.Millisecond}, zap.NewNop())
	err := store.Upload(context.Background(), "docs/x/a.txt", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.True(t, providers.IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSupabaseStore_Remove(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/documents", r.URL.Path)

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"docs/abc/a.txt"}, body["prefixes"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := NewSupabaseStore(Config{URL: server.URL, Key: "k", Bucket: "documents"}, zap.NewNop())
	require.NoError(t, store.Remove(context.Background(), "docs/abc/a.txt"))
}

func TestSupabaseStore_PublicURL(t *testing.T) {
	store := NewSupabaseStore(Config{URL: "https://proj.supabase.co/", Bucket: "documents"}, zap.NewNop())

	url := store.PublicURL("voice/u1/voice_u1_1700000000.mp3")
	assert.True(t, strings.HasPrefix(url, "https://proj.supabase.co/storage/v1/object/public/documents/"), url)
	assert.True(t, strings.HasSuffix(url, "voice/u1/voice_u1_1700000000.mp3"), url)
}
