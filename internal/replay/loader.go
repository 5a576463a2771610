package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"diamondsim/engine/internal/play"
)

// Event is one decoded line of the event log.
type Event struct {
	Seq        uint64          `json:"seq"`
	T          float64         `json:"t"`
	CapturedAt time.Time       `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

// TimelineEntry is one event or frame in play-clock order.
type TimelineEntry struct {
	T     float64
	Event *Event
	Frame *play.Frame
}

// Bundle is a replay read back from disk.
type Bundle struct {
	Dir      string       `json:"dir"`
	Manifest Manifest     `json:"manifest"`
	Header   *Header      `json:"header,omitempty"`
	Events   []Event      `json:"events"`
	Frames   []play.Frame `json:"frames"`
}

// Load reads a bundle from its directory or from the path of its manifest.
func Load(path string) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("replay path must be provided")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	manifestPath := path
	if info.IsDir() {
		manifestPath = filepath.Join(path, manifestFile)
	}
	dir := filepath.Dir(manifestPath)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	bundle := &Bundle{Dir: dir}
	if err := json.Unmarshal(data, &bundle.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if bundle.Manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", bundle.Manifest.Version)
	}

	//1.- The header is written on close, so a bundle from a crashed writer has none.
	header, err := ReadHeader(filepath.Join(dir, headerFile))
	switch {
	case err == nil:
		bundle.Header = &header
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	//2.- Decode events first, then frames.
	if bundle.Events, err = readEvents(filepath.Join(dir, bundle.Manifest.EventsPath)); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	if bundle.Frames, err = readFrames(filepath.Join(dir, bundle.Manifest.FramesPath)); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return bundle, nil
}

// Outcome decodes the outcome event, if the play finished.
func (b *Bundle) Outcome() (*play.Outcome, bool, error) {
	if b == nil {
		return nil, false, nil
	}
	for i := len(b.Events) - 1; i >= 0; i-- {
		if b.Events[i].Type != EventOutcome {
			continue
		}
		var outcome play.Outcome
		if err := json.Unmarshal(b.Events[i].Payload, &outcome); err != nil {
			return nil, false, fmt.Errorf("decode outcome: %w", err)
		}
		return &outcome, true, nil
	}
	return nil, false, nil
}

// Replay walks events and frames in play-clock order. Events sort ahead of a
// frame stamped at the same instant.
func (b *Bundle) Replay(apply func(TimelineEntry) error) error {
	if b == nil {
		return fmt.Errorf("bundle not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	entries := make([]TimelineEntry, 0, len(b.Events)+len(b.Frames))
	for i := range b.Events {
		entries = append(entries, TimelineEntry{T: b.Events[i].T, Event: &b.Events[i]})
	}
	for i := range b.Frames {
		entries = append(entries, TimelineEntry{T: b.Frames[i].T, Frame: &b.Frames[i]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].T == entries[j].T {
			return entries[i].Event != nil && entries[j].Event == nil
		}
		return entries[i].T < entries[j].T
	})
	for _, entry := range entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

func readEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var events []Event
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw eventRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, err
		}
		captured, err := time.Parse(time.RFC3339Nano, raw.CapturedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, Event{Seq: raw.Seq, T: raw.T, CapturedAt: captured, Type: raw.Type, Payload: raw.Payload})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func readFrames(path string) ([]play.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []play.Frame
	offset := 0
	for offset+frameHeaderSize <= len(payload) {
		//1.- Read the fixed header, then decode the msgpack body it announces.
		t := math.Float64frombits(binary.LittleEndian.Uint64(payload[offset+8 : offset+16]))
		size := int(binary.LittleEndian.Uint32(payload[offset+16 : offset+20]))
		offset += frameHeaderSize
		if offset+size > len(payload) {
			return nil, fmt.Errorf("frame payload truncated")
		}
		var frame play.Frame
		if err := msgpack.Unmarshal(payload[offset:offset+size], &frame); err != nil {
			return nil, fmt.Errorf("decode frame at t=%g: %w", t, err)
		}
		offset += size
		frames = append(frames, frame)
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("frame stream has %d trailing bytes", len(payload)-offset)
	}
	return frames, nil
}
