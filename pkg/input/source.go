package input

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Source produces discrete key-down events.
type Source interface {
	// Poll returns the next pending key without blocking.
	Poll() (KeyID, bool)
}

// ChanSource buffers keys pushed by another goroutine, such as a terminal UI.
type ChanSource struct {
	ch chan KeyID
}

// NewChanSource creates a source buffering up to size keys.
func NewChanSource(size int) *ChanSource {
	return &ChanSource{ch: make(chan KeyID, size)}
}

// Push queues a key. It never blocks and reports false when the buffer is
// full and the key was dropped.
func (s *ChanSource) Push(key KeyID) bool {
	select {
	case s.ch <- key:
		return true
	default:
		return false
	}
}

// Poll implements Source.
func (s *ChanSource) Poll() (KeyID, bool) {
	select {
	case k := <-s.ch:
		return k, true
	default:
		return "", false
	}
}

// LineSource reads one key identifier per line, e.g. from a pipe:
//
//	printf 'r\nleft\nleft\no\np\n' | armctl run --input stdin
//
// Blank lines and lines starting with '#' are skipped. KeyEOF is emitted
// once the reader is exhausted.
type LineSource struct {
	ch   chan KeyID
	done chan struct{}
	err  error
}

// NewLineSource starts reading r until EOF or ctx is cancelled.
func NewLineSource(ctx context.Context, r io.Reader) *LineSource {
	s := &LineSource{
		ch:   make(chan KeyID, 64),
		done: make(chan struct{}),
	}
	go s.read(ctx, r)
	return s
}

func (s *LineSource) read(ctx context.Context, r io.Reader) {
	defer close(s.done)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !s.send(ctx, KeyID(line)) {
			return
		}
	}
	s.err = sc.Err()
	s.send(ctx, KeyEOF)
}

func (s *LineSource) send(ctx context.Context, key KeyID) bool {
	select {
	case s.ch <- key:
		return true
	case <-ctx.Done():
		return false
	}
}

// Poll implements Source.
func (s *LineSource) Poll() (KeyID, bool) {
	select {
	case k := <-s.ch:
		return k, true
	default:
		return "", false
	}
}

// Done is closed when the reader goroutine has exited.
func (s *LineSource) Done() <-chan struct{} { return s.done }

// Err returns the read error, if any, once Done is closed.
func (s *LineSource) Err() error {
	<-s.done
	return s.err
}
