package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSMSSender_Send(t *testing.T) {
	var got smsRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"msg-1","status":"queued"}`))
	}))
	defer srv.Close()

	s := NewSMSSender(SMSConfig{GatewayURL: srv.URL, APIKey: "k3y", Sender: "Shop", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, s.Send(context.Background(), "+2250700000000", "hello"))

	assert.Equal(t, "Bearer k3y", auth)
	assert.Equal(t, smsRequest{To: "+2250700000000", From: "Shop", Message: "hello"}, got)
}

func TestSMSSender_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unknown number"}`))
	}))
	defer srv.Close()

	s := NewSMSSender(SMSConfig{GatewayURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	err := s.Send(context.Background(), "+2250700000000", "hello")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "unknown number")
}
