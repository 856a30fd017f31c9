package state

// LogBuffer is a bounded ring of lines that evicts the oldest line when
// full. It is not safe for concurrent use; the Store guards it.
type LogBuffer struct {
	lines []string
	start int
	size  int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBuffer{lines: make([]string, capacity)}
}

func (b *LogBuffer) Cap() int { return len(b.lines) }
func (b *LogBuffer) Len() int { return b.size }

func (b *LogBuffer) Append(lines ...string) {
	for _, line := range lines {
		if b.size < len(b.lines) {
			b.lines[(b.start+b.size)%len(b.lines)] = line
			b.size++
			continue
		}
		b.lines[b.start] = line
		b.start = (b.start + 1) % len(b.lines)
	}
}

// Lines returns a copy in arrival order.
func (b *LogBuffer) Lines() []string {
	out := make([]string, b.size)
	for i := range b.size {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}

func (b *LogBuffer) Reset() {
	clear(b.lines)
	b.start, b.size = 0, 0
}
