package context

// AnchoredCompressor bounds history length while keeping one anchored
// message, normally the task being worked on. Once the history grows past
// Threshold it keeps the anchor plus the most recent Keep messages.
type AnchoredCompressor struct {
	Keep      int
	Threshold int
}

// NewAnchoredCompressor compacts above 2*limit messages down to the anchor
// plus the last 2*limit. A limit of zero or less disables it.
func NewAnchoredCompressor(limit int) *AnchoredCompressor {
	return &AnchoredCompressor{Keep: 2 * limit, Threshold: 2 * limit}
}

// Compress anchors the first message. It returns messages unchanged when
// compaction is disabled or not yet due.
func (c *AnchoredCompressor) Compress(messages []Message) []Message {
	out, _ := c.CompressAt(messages, 0)
	return out
}

// CompressAt compacts messages while keeping messages[anchor]. Everything
// older than the recent tail is dropped, including turns before the anchor.
// A negative anchor keeps only the tail. The anchor's index in the returned
// slice is reported, or -1 when nothing is anchored.
func (c *AnchoredCompressor) CompressAt(messages []Message, anchor int) ([]Message, int) {
	if c == nil || c.Keep <= 0 || anchor >= len(messages) {
		return messages, anchor
	}
	threshold := max(c.Threshold, c.Keep)
	if len(messages) <= threshold {
		return messages, anchor
	}
	tail := len(messages) - c.Keep
	switch {
	case anchor < 0:
		return append([]Message(nil), messages[tail:]...), -1
	case anchor >= tail:
		return append([]Message(nil), messages[tail:]...), anchor - tail
	case anchor == 0 && tail == 1:
		return messages, 0
	}
	out := make([]Message, 0, 1+c.Keep)
	out = append(out, messages[anchor])
	out = append(out, messages[tail:]...)
	return out, 0
}
