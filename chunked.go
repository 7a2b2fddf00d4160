package webserver

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// ChunkedReader decodes a chunked transfer-encoded body. It yields io.EOF
// once the terminal zero-length chunk and its trailing CRLF have been
// consumed, leaving the underlying reader positioned at the next request.
type ChunkedReader struct {
	r        *bufio.Reader
	chunkLen int // -1 means the beginning of the next chunk
	done     bool
}

// NewChunkedReader creates a ChunkedReader reading from `r`.
func NewChunkedReader(r *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{r: r, chunkLen: -1}
}

func (r *ChunkedReader) readChunkLength() error {
	b, err := r.r.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "failed to read chunk length")
	}
	blen := len(b)
	if blen < 2 || b[blen-2] != '\r' || b[blen-1] != '\n' {
		return errors.New("failed to read CRLF")
	}
	length, err := strconv.ParseUint(string(b[:blen-2]), 16, 31)
	if err != nil {
		return errors.Errorf("invalid chunk length: %q", b[:blen-2])
	}
	r.chunkLen = int(length)
	return nil
}

func (r *ChunkedReader) readCRLF() error {
	b, err := r.r.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "failed to read CRLF")
	}
	if len(b) != 2 || b[0] != '\r' || b[1] != '\n' {
		return errors.New("failed to read CRLF")
	}
	return nil
}

func (r *ChunkedReader) Read(b []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if r.chunkLen < 0 {
		if err := r.readChunkLength(); err != nil {
			return 0, err
		}
	}
	if r.chunkLen == 0 {
		r.done = true
		if err := r.readCRLF(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	n := r.chunkLen
	if len(b) < n {
		n = len(b)
	}
	m, err := r.r.Read(b[:n])
	r.chunkLen -= m
	if err == io.EOF && r.chunkLen > 0 {
		err = io.ErrUnexpectedEOF
	}
	if r.chunkLen == 0 {
		r.chunkLen = -1
		if e := r.readCRLF(); e != nil && err == nil {
			err = e
		}
	}
	return m, err
}
