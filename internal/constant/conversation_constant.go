package constant

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"

	// Conversation titles are cut from the first question
	ConversationTitleMaxLength = 80
)
