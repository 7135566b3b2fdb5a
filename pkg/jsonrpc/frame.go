package jsonrpc

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// frameReader splits the input stream into newline-delimited frames.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next non-blank frame, or io.EOF at end of stream. A
// trailing partial line without its separator is discarded, never emitted.
func (fr *frameReader) next() (string, error) {
	for {
		line, err := fr.r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return line, nil
	}
}

// frameWriter is the sole owner of the output stream. Each frame is one
// full line written under the lock and flushed synchronously, so the
// parent never sees a partial or interleaved frame.
type frameWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: bufio.NewWriter(w)}
}

func (fw *frameWriter) writeFrame(payload []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	if err := fw.w.WriteByte('\n'); err != nil {
		return err
	}
	return fw.w.Flush()
}
