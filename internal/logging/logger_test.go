package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"diamondsim/engine/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "debug")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.With(String("play", "p-1")).Warn("unreachable target",
		Float64("horizon", 40),
		Int("steps", 12),
		Error(errors.New("boom")))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["level"] != "warn" || entry["message"] != "unreachable target" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["play"] != "p-1" || entry["horizon"] != 40.0 || entry["steps"] != 12.0 || entry["error"] != "boom" {
		t.Fatalf("missing fields in %v", entry)
	}
	if entry["service"] != "diamondsim" {
		t.Fatalf("expected the service field, got %v", entry["service"])
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("shown")
	if entries := decodeLines(t, &buf); len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Fatalf("expected only the error entry, got %v", entries)
	}
	if _, err := NewWriter(&buf, "loud"); err == nil {
		t.Fatalf("expected an unknown level to be rejected")
	}
}

func TestTraceMiddlewarePropagatesHeader(t *testing.T) {
	var seen string
	handler := HTTPTraceMiddleware(NewTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(TraceIDHeader, "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "abc123" || rec.Header().Get(TraceIDHeader) != "abc123" {
		t.Fatalf("expected the incoming trace id to be kept, got %q / %q", seen, rec.Header().Get(TraceIDHeader))
	}

	ctx, _, generated := WithTrace(context.Background(), nil, "")
	if len(generated) != 32 || TraceIDFromContext(ctx) != generated {
		t.Fatalf("expected a generated 32 character trace id, got %q", generated)
	}
}

func TestRotatingWriterCompressesRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diamond.log")
	writer, err := newRotatingWriter(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2, Compress: true})
	if err != nil {
		t.Fatalf("rotating writer: %v", err)
	}
	//1.- Shrink the limit so the second write forces a rotation.
	writer.maxSize = 16
	if _, err := writer.Write([]byte("first entry\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := writer.Write([]byte("second entry\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "diamond-*.log.gz"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one compressed backup, got %v (%v)", matches, err)
	}
	file, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer file.Close()
	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "first entry\n" {
		t.Fatalf("unexpected backup content %q", data)
	}
	current, err := os.ReadFile(path)
	if err != nil || string(current) != "second entry\n" {
		t.Fatalf("unexpected active log %q (%v)", current, err)
	}
}

func TestRotatingWriterPrunesOldBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diamond.log")
	writer, err := newRotatingWriter(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("rotating writer: %v", err)
	}
	defer writer.Close()
	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	writer.now = func() time.Time { return clock }
	writer.maxSize = 4

	//1.- Each write rotates the previous one out; the clock advances an hour per entry.
	for _, entry := range []string{"one\n", "two\n", "three\n", "four\n"} {
		if _, err := writer.Write([]byte(entry)); err != nil {
			t.Fatalf("write %q: %v", entry, err)
		}
		clock = clock.Add(time.Hour)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "diamond-*.log"))
	if err != nil || len(matches) != 2 {
		t.Fatalf("expected two backups kept, got %v (%v)", matches, err)
	}
	newest, err := os.ReadFile(matches[1])
	if err != nil || string(newest) != "three\n" {
		t.Fatalf("unexpected newest backup %q (%v)", newest, err)
	}

	//2.- A day later the next rotation ages every earlier backup out.
	clock = clock.Add(48 * time.Hour)
	if _, err := writer.Write([]byte("five\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	matches, _ = filepath.Glob(filepath.Join(dir, "diamond-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected only the fresh backup, got %v", matches)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := writer.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected os.ErrClosed after close, got %v", err)
	}
}
