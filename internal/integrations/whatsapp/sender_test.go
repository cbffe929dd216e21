package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{AccessToken: "token-123", PhoneNumberID: "555000111"}
}

func TestSendText_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendText(context.Background(), testCreds(), "221771234567", "Bonjour")
	require.NoError(t, err)

	assert.Equal(t, "/555000111/messages", gotPath)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "221771234567", gotBody["to"])
	assert.Equal(t, map[string]any{"body": "Bonjour"}, gotBody["text"])
}

func TestSendText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendText(context.Background(), testCreds(), "221771234567", "Bonjour")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
}

func TestSendBatch_PartialFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			To string `json:"to"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.To == "badnumber" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results := c.SendBatch(context.Background(), testCreds(), []BatchItem{
		{To: "221771234567", Text: "a"},
		{To: "badnumber", Text: "b"},
		{To: "221779876543", Text: "c"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Error(t, results[1].Err)
	assert.True(t, results[2].Success)
	// Results stay in input order regardless of completion order.
	assert.Equal(t, "badnumber", results[1].To)
}
