package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
)

// Apology はモデルが空の返答を返したときの固定メッセージ。
const Apology = "すみません、うまく返答できませんでした。"

// Service generates the assistant side of a reflection conversation.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the conversation chain around the supplied chat model.
// The model should be configured with moderate randomness; this is the
// natural-dialogue call, not the extraction call.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile conversation chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// Respond produces the next assistant utterance for the transcript. It
// returns an error only when the model call itself fails; an empty completion
// degrades to the fixed apology string.
func (s *Service) Respond(ctx context.Context, messages []chat.Message, p *profile.UserProfile, diaryDigest string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(messages, p, diaryDigest))
	if err != nil {
		return "", fmt.Errorf("failed to run conversation chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return Apology, nil
	}

	log.Printf("[ai] generated reply, turns=%d length=%d", len(messages), len(content))
	return content, nil
}

// StreamReply streams the next assistant utterance chunk by chunk.
func (s *Service) StreamReply(ctx context.Context, messages []chat.Message, p *profile.UserProfile, diaryDigest string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(messages, p, diaryDigest))
	if err != nil {
		return nil, fmt.Errorf("failed to stream conversation chain: %w", err)
	}
	return stream, nil
}

// buildChainInput splits the transcript into prior history plus the newest
// user turn. A transcript without a trailing user message still runs with an
// empty query, matching the "always attempt" contract.
func (s *Service) buildChainInput(messages []chat.Message, p *profile.UserProfile, diaryDigest string) map[string]any {
	query := ""
	history := messages
	if n := len(messages); n > 0 && messages[n-1].Sender == chat.SenderUser {
		query = messages[n-1].Content
		history = messages[:n-1]
	}

	return map[string]any{
		"system":  BuildConversationPrompt(p, diaryDigest),
		"history": toSchemaMessages(history),
		"query":   query,
	}
}

// toSchemaMessages maps transcript senders onto model roles in original
// order. Unknown senders are skipped.
func toSchemaMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAI:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
