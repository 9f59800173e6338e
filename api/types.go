package api

// Conversation is the full conversation record as returned by the server.
type Conversation struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	TotalTokens  int64  `json:"total_tokens"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Model        string `json:"model"`
	MessageCount int64  `json:"message_count"`
	TotalTokens  int64  `json:"total_tokens"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Message is a stored chat message. Role is one of "user", "assistant", "system".
type Message struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	TokenCount *int64 `json:"token_count,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ConnectionStatus reports whether a fitness provider is linked to the account.
type ConnectionStatus struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Scopes    string `json:"scopes,omitempty"`
}

type conversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}

type messagesListResponse struct {
	Messages []Message `json:"messages"`
}

type createConversationRequest struct {
	Title        string `json:"title"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type updateConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream"`
}

type authorizationResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state,omitempty"`
	Instructions     string `json:"instructions,omitempty"`
	ExpiresInMinutes int64  `json:"expires_in_minutes,omitempty"`
}

type errorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}
