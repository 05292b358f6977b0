package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	r.mu.Unlock()

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid payload"}`))
		return
	}
	if payload["ignored"] == true {
		_, _ = w.Write([]byte(`{"status":"discarded","events":0}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"accepted","events":1}`))
}

func TestReplay(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	input := strings.Join([]string{
		`{"a":1}`,
		``,
		`# captured 2024-05-01`,
		`{"ignored":true}`,
		`not json`,
		`{"a":2}`,
	}, "\n")

	var out bytes.Buffer
	stats, err := replay(context.Background(), server.Client(), replayConfig{url: server.URL}, strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, replayStats{lines: 6, accepted: 2, discarded: 1, rejected: 1, skipped: 2}, stats)
	assert.Equal(t, []string{`{"a":1}`, `{"ignored":true}`, `not json`, `{"a":2}`}, rec.bodies)
	assert.Contains(t, out.String(), "status 400: invalid payload")
}

func TestReplay_EdgeCases(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	{
		// stop at the first rejection
		input := "not json\n{\"a\":1}\n"
		stats, err := replay(context.Background(), server.Client(),
			replayConfig{url: server.URL, stopOnError: true}, strings.NewReader(input), io.Discard)
		require.ErrorIs(t, err, errRejected)
		assert.Equal(t, 1, stats.rejected)
		assert.Equal(t, 0, stats.accepted)
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := replay(ctx, server.Client(), replayConfig{url: server.URL}, strings.NewReader(`{"a":1}`), io.Discard)
		require.ErrorIs(t, err, context.Canceled)
	}

	{
		// listener down
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		_, err := replay(context.Background(), http.DefaultClient, replayConfig{url: closed.URL}, strings.NewReader(`{"a":1}`), io.Discard)
		require.Error(t, err)
	}
}
