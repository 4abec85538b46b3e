package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverse_ExtractsDisplayName(t *testing.T) {
	var gotQuery string
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Red Square, Moscow, Russia","addresstype":"square"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	addr, err := c.Reverse(context.Background(), 55.7539, 37.6208)
	require.NoError(t, err)
	assert.Equal(t, "Red Square, Moscow, Russia", addr)

	assert.Contains(t, gotQuery, "lat=55.7539")
	assert.Contains(t, gotQuery, "lon=37.6208")
	assert.Contains(t, gotQuery, "format=jsonv2")
	assert.Contains(t, gotQuery, "addressdetails=1")
	assert.NotEmpty(t, gotAgent)
}

func TestReverse_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Reverse(context.Background(), 1, 2)
	assert.Error(t, err)
}

func TestReverse_EmptyDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Reverse(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestReverse_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Reverse(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestReverse_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"display_name":"x"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL).Reverse(ctx, 0, 0)
	assert.Error(t, err)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
}
