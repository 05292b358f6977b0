package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxLine = 1 << 20

type replayConfig struct {
	file        string
	url         string
	delay       time.Duration
	stopOnError bool
}

type replayStats struct {
	lines     int
	accepted  int
	discarded int
	rejected  int
	skipped   int
}

type pushResponse struct {
	Status string `json:"status"`
	Events int    `json:"events"`
	Error  string `json:"error"`
}

var errRejected = errors.New("delivery rejected")

// replay posts each non-blank line of r in order. Order matters: the listener
// derives transitions from consecutive deliveries of the same device.
func replay(ctx context.Context, client *http.Client, cfg replayConfig, r io.Reader, out io.Writer) (replayStats, error) {
	var stats replayStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := strings.TrimSpace(scanner.Text())
		stats.lines++
		if line == "" || strings.HasPrefix(line, "#") {
			stats.skipped++
			continue
		}

		resp, code, err := post(ctx, client, cfg.url, []byte(line))
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.lines, err)
		}

		switch {
		case code == http.StatusOK && resp.Status == "discarded":
			stats.discarded++
			fmt.Fprintf(out, "\rline %v: discarded", stats.lines)
		case code == http.StatusOK:
			stats.accepted++
			fmt.Fprintf(out, "\rline %v: accepted, events=%v", stats.lines, resp.Events)
		default:
			stats.rejected++
			fmt.Fprintf(out, "\nline %v: status %v: %v\n", stats.lines, code, resp.Error)
			if cfg.stopOnError {
				return stats, fmt.Errorf("line %d: %w with status %d", stats.lines, errRejected, code)
			}
		}

		if cfg.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(cfg.delay):
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read replay file: %w", err)
	}
	return stats, nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (pushResponse, int, error) {
	var out pushResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return out, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return out, 0, err
	}
	defer resp.Body.Close()

	// error bodies are not always JSON
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out, resp.StatusCode, nil
}
