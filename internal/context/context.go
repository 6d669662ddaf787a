package context

// Compressor reduces a list of messages to fit within constraints.
type Compressor interface {
	Compress(messages []Message) []Message
}

// AnchorCompressor compacts while keeping the message at a given index.
// It returns the compacted list and the anchor's new index.
type AnchorCompressor interface {
	CompressAt(messages []Message, anchor int) ([]Message, int)
}

// Assembler combines the system prompt and history into a final message list.
type Assembler interface {
	Assemble(system string, history []Message) []Message
}
