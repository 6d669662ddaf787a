package context

// StandardAssembler places the system prompt ahead of the history.
type StandardAssembler struct{}

// Assemble builds the final message list: system + history. The history
// slice is copied, never aliased.
func (a *StandardAssembler) Assemble(system string, history []Message) []Message {
	messages := make([]Message, 0, 1+len(history))
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, history...)
	return messages
}
