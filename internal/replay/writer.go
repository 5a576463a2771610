package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"diamondsim/engine/internal/play"
)

var writerPlayCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	// ManifestVersion is the bundle layout understood by Load.
	ManifestVersion = 1

	eventsFile   = "events.jsonl.sz"
	framesFile   = "frames.bin.zst"
	manifestFile = "manifest.json"
	headerFile   = "header.json"

	// frameHeaderSize is seq (8) + play time bits (8) + payload length (4).
	frameHeaderSize = 8 + 8 + 4
	// frameBatch is how many encoded frames are staged before they reach zstd.
	frameBatch = 64
)

// frameBlob stores an encoded frame before it is persisted to disk.
type frameBlob struct {
	Seq     uint64
	T       float64
	Payload []byte
}

// Writer streams one play's artefacts into a bundle directory.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	pending     []frameBlob
	eventSeq    uint64
	frameSeq    uint64
	header      Header
	closed      bool
}

// Manifest describes the replay bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version       int    `json:"version"`
	PlayID        string `json:"play_id"`
	CreatedAt     string `json:"created_at"`
	FrameEncoding string `json:"frame_encoding"`
	EventsPath    string `json:"events_path"`
	FramesPath    string `json:"frames_path"`
}

// NewWriter prepares the bundle directory and opens the compressed sinks.
func NewWriter(root, playID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerPlayCleaner.ReplaceAllString(playID, "")
	if cleaned == "" {
		cleaned = "play"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	frameFile, err := os.Create(filepath.Join(path, framesFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:       ManifestVersion,
		PlayID:        playID,
		CreatedAt:     created.Format(time.RFC3339Nano),
		FrameEncoding: "msgpack",
		EventsPath:    eventsFile,
		FramesPath:    framesFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestFile), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: eventStream,
		frameFile:   frameFile,
		frameStream: frameStream,
		header:      Header{SchemaVersion: HeaderSchemaVersion, PlayID: playID},
	}
	return writer, manifest, nil
}

// Directory exposes the directory backing the replay bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendEvent writes one JSON line stamped with the play clock.
func (w *Writer) AppendEvent(playTime float64, eventType string, payload any) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}

	//1.- Wrap the payload with its sequence and play time so readers can stream the log.
	w.eventSeq++
	line, err := json.Marshal(eventRecord{
		Seq:        w.eventSeq,
		T:          playTime,
		CapturedAt: captured.Format(time.RFC3339Nano),
		Type:       eventType,
		Payload:    body,
	})
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendFrame encodes a frame with MessagePack and stages it for the zstd stream.
func (w *Writer) AppendFrame(frame play.Frame) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	payload, err := msgpack.Marshal(&frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	w.frameSeq++
	w.pending = append(w.pending, frameBlob{Seq: w.frameSeq, T: frame.T, Payload: payload})
	if len(w.pending) >= frameBatch {
		return w.flushLocked()
	}
	return nil
}

// SetHeaderMetadata configures the header persisted alongside the bundle.
func (w *Writer) SetHeaderMetadata(header Header) {
	if w == nil {
		return
	}
	w.mu.Lock()
	header.SchemaVersion = HeaderSchemaVersion
	if header.PlayID == "" {
		header.PlayID = w.header.PlayID
	}
	header.Launch = header.Launch.Clone()
	w.header = header
	w.mu.Unlock()
}

// Flush forces staged frames into the compressed stream.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close writes the header, flushes every buffer and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Persist the header first so a truncated bundle is still catalogued.
	var firstErr error
	header := w.header
	header.FilePointer = manifestFile
	if err := WriteHeader(filepath.Join(w.dir, headerFile), header); err != nil && firstErr == nil {
		firstErr = err
	}
	//2.- Attempt every flush and close, surfacing the first failure.
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes staged frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	header := make([]byte, frameHeaderSize)
	for _, frame := range w.pending {
		binary.LittleEndian.PutUint64(header[0:8], frame.Seq)
		binary.LittleEndian.PutUint64(header[8:16], math.Float64bits(frame.T))
		binary.LittleEndian.PutUint32(header[16:20], uint32(len(frame.Payload)))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(frame.Payload); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}

type eventRecord struct {
	Seq        uint64          `json:"seq"`
	T          float64         `json:"t"`
	CapturedAt string          `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}
