package cul

import "bytes"

// maxPendingBytes bounds the partial line kept between reads. A line longer
// than this is noise and is discarded.
const maxPendingBytes = 256

// Framer splits the receiver's byte stream into newline-terminated frames.
// A chunk may carry several frames, or only part of one; partial data is
// kept until its terminator arrives.
//
// Framer is not safe for concurrent use. The bridge loop owns it.
type Framer struct {
	pending   []byte
	discarded uint64
}

// Push appends data and returns every complete frame now available. Each
// frame includes its trailing "\n" (and "\r" when the receiver sent one).
// Blank lines are skipped.
func (f *Framer) Push(data []byte) [][]byte {
	f.pending = append(f.pending, data...)

	var frames [][]byte
	for {
		idx := bytes.IndexByte(f.pending, '\n')
		if idx < 0 {
			break
		}

		line := make([]byte, idx+1)
		copy(line, f.pending[:idx+1])
		f.pending = f.pending[idx+1:]

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		frames = append(frames, line)
	}

	if len(f.pending) > maxPendingBytes {
		f.discarded += uint64(len(f.pending))
		f.pending = nil
	}

	return frames
}

// Pending returns the number of buffered bytes without a terminator.
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Discarded returns the total number of bytes dropped as oversized partial lines.
func (f *Framer) Discarded() uint64 {
	return f.discarded
}

// Reset drops any partial frame.
func (f *Framer) Reset() {
	f.pending = nil
}
