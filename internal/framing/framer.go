// Package framing splits a chunked byte stream into discrete protocol
// messages, one per newline-terminated line.
package framing

import (
	"bytes"
	"log/slog"

	"github.com/hostkit/toolhost/internal/wire"
)

// maxBufferSize caps the pending-fragment buffer. A single message larger
// than this is discarded rather than growing the buffer without bound.
const maxBufferSize = 4 * 1024 * 1024 // 4MB

// Framer incrementally decodes newline-delimited JSON messages from a
// stream delivered in arbitrary chunks. Decoded messages are handed to the
// listener synchronously, in arrival order. Lines that fail to decode are
// logged at debug level and dropped; providers routinely interleave plain
// log output on the same stream.
//
// Framer is not safe for concurrent use; exactly one reader feeds it.
type Framer struct {
	log       *slog.Logger
	onMessage func(wire.Message)
	buf       bytes.Buffer
	overflow  bool
}

// New creates a Framer that delivers decoded messages to onMessage.
func New(log *slog.Logger, onMessage func(wire.Message)) *Framer {
	return &Framer{
		log:       log.With("component", "framer"),
		onMessage: onMessage,
	}
}

// Feed appends chunk to the internal buffer and emits every complete line
// it now holds. An incomplete trailing fragment stays buffered for the
// next call. Feed never blocks and never emits a partial line.
func (f *Framer) Feed(chunk []byte) {
	f.buf.Write(chunk)

	for {
		data := f.buf.Bytes()

		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}

		// Copy the line out before Next invalidates the slice.
		line := make([]byte, idx)
		copy(line, data[:idx])
		f.buf.Next(idx + 1)

		if f.overflow {
			// Tail of a line that already exceeded the buffer cap.
			f.overflow = false

			continue
		}

		f.emit(line)
	}

	if f.buf.Len() > maxBufferSize {
		f.log.Warn("Discarding oversized message fragment", "size", f.buf.Len())
		f.buf.Reset()

		f.overflow = true
	}
}

// emit decodes one extracted line and delivers it. Blank lines and
// undecodable lines are skipped.
func (f *Framer) emit(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return
	}

	msg, err := wire.Decode(trimmed)
	if err != nil {
		f.log.Debug("Skipping non-protocol line", "error", err, "line", string(trimmed))

		return
	}

	f.onMessage(msg)
}
