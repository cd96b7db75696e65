package nodelog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/nxadm/tail"
)

// Tailer reads the node's JSON log file line by line and emits decoded
// events. It follows the file across truncation and rotation, which the node
// does on its own schedule.
type Tailer struct {
	tail   *tail.Tail
	out    chan Event
	log    *slog.Logger
	onDrop func()
}

// TailerOption configures a Tailer.
type TailerOption func(*Tailer)

// WithDropCounter registers a callback invoked for every line that could not
// be decoded into an Event.
func WithDropCounter(fn func()) TailerOption {
	return func(t *Tailer) { t.onDrop = fn }
}

// NewTailer opens the log file and starts decoding from its current end.
// Events become available on Events() immediately.
func NewTailer(path string, logger *slog.Logger, opts ...TailerOption) (*Tailer, error) {
	return newTailer(path, logger, tail.Config{
		Follow: true,
		ReOpen: true,
		// Only events logged after startup matter; historical blocks were
		// already fully processed by the node.
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	}, opts...)
}

// NewFileReader reads an existing log file from the beginning without
// following it. Used for replaying captured logs.
func NewFileReader(path string, logger *slog.Logger, opts ...TailerOption) (*Tailer, error) {
	return newTailer(path, logger, tail.Config{
		Follow: false,
		Logger: tail.DiscardingLogger,
	}, opts...)
}

func newTailer(path string, logger *slog.Logger, cfg tail.Config, opts ...TailerOption) (*Tailer, error) {
	tl, err := tail.TailFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("tailing %s: %w", path, err)
	}

	t := &Tailer{
		tail: tl,
		out:  make(chan Event, 256),
		log:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.readLines()
	return t, nil
}

// Events returns the ordered event stream.
func (t *Tailer) Events() <-chan Event {
	return t.out
}

// Close stops tailing. The events channel is closed once the read loop
// drains.
func (t *Tailer) Close() error {
	return t.tail.Stop()
}

func (t *Tailer) readLines() {
	defer close(t.out)

	for line := range t.tail.Lines {
		if line.Err != nil {
			t.log.Warn("log tail error", "err", line.Err)
			continue
		}
		if len(line.Text) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(line.Text), &ev); err != nil {
			t.log.Debug("skipping undecodable log line", "err", err)
			if t.onDrop != nil {
				t.onDrop()
			}
			continue
		}
		if ev.NS == "" {
			// Not a trace record. The node also writes plain text startup
			// banners into the same file.
			if t.onDrop != nil {
				t.onDrop()
			}
			continue
		}
		t.out <- ev
	}
}
