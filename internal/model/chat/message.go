package chat

import "time"

// Sender identifies which side of the conversation authored a message.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is a single turn in a reflection session. Messages are immutable
// once created; their insertion order forms the transcript replayed to the
// language model.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// UserContents collects the user-authored contents of a transcript in order.
// Summarization uses this as its only evidence so the model cannot be fed
// its own earlier output.
func UserContents(messages []Message) []string {
	contents := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Sender == SenderUser {
			contents = append(contents, msg.Content)
		}
	}
	return contents
}
