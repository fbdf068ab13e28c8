// Package summary turns a finished session transcript into one structured
// diary record. The model is asked for a bare JSON object; whatever it sends
// back is parsed defensively and replaced wholesale by a fixed fallback when
// the shape does not hold.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/diary"
	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	"github.com/hayasepd/yorutomo/backend/internal/service/ai"
)

// ErrEmptyCompletion signals that the model responded with no content at
// all; callers treat it like any other capability failure and may retry.
var ErrEmptyCompletion = errors.New("empty completion from chat model")

// Config controls the summarization service.
type Config struct {
	// Fallback overrides the constant substituted when the model output
	// cannot be parsed or validated. Nil keeps the default.
	Fallback *diary.Summary
}

// Service performs the structured diary extraction.
type Service struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	fallback diary.Summary
}

// NewService compiles the extraction chain. The chat model should be the
// low-randomness profile; this is a structured-extraction call, not a
// conversational one.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{evidence}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	fallback := FallbackResult()
	if cfg.Fallback != nil {
		fallback = *cfg.Fallback
	}

	return &Service{chain: runnable, fallback: fallback}, nil
}

// FallbackResult returns the default always-valid summary substituted when
// generation output cannot be used.
func FallbackResult() diary.Summary {
	return diary.Summary{
		DiaryEntry:   "今日も一日お疲れ様でした。振り返りの時間を大切にしていることが素晴らしいですね。",
		EmotionScore: 7,
		Keywords:     []string{"振り返り", "成長"},
		Highlights:   []string{"今日の体験"},
		GrowthPoints: []string{"継続する大切さ"},
	}
}

// Summarize distills the transcript into a diary summary. Only user-authored
// messages are fed to the model as evidence. The function is total with
// respect to content problems: a malformed response yields the fallback, and
// an error is returned only when the model call itself fails.
func (s *Service) Summarize(ctx context.Context, messages []chat.Message, p *profile.UserProfile, diaryDigest string) (diary.Summary, error) {
	_ = diaryDigest // reserved: the extraction prompt deliberately excludes history to keep evidence narrow

	evidence := strings.Join(chat.UserContents(messages), "\n")

	input := map[string]any{
		"system":   ai.BuildSummaryPrompt(p),
		"evidence": "以下の会話から日記を生成してください：\n\n" + evidence,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return diary.Summary{}, fmt.Errorf("failed to run summary chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return diary.Summary{}, ErrEmptyCompletion
	}

	result, err := parseSummary(response.Content)
	if err != nil {
		log.Printf("[summary] falling back, unusable model output: %v", err)
		return s.fallback, nil
	}
	return result, nil
}

// fenceRe matches a markdown code block, labeled as json or not. Models do
// not reliably honor the "no markdown" instruction even when asked.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripFence removes a surrounding markdown fence when present and trims the
// rest.
func stripFence(content string) string {
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

type summaryPayload struct {
	DiaryEntry   string   `json:"diaryEntry"`
	EmotionScore *float64 `json:"emotionScore"`
	Keywords     []string `json:"keywords"`
	Highlights   []string `json:"highlights"`
	GrowthPoints []string `json:"growthPoints"`
}

// parseSummary validates the raw model output against the five-field
// contract: non-empty diaryEntry, numeric emotionScore, array keywords.
func parseSummary(content string) (diary.Summary, error) {
	cleaned := stripFence(content)

	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return diary.Summary{}, fmt.Errorf("invalid json: %w", err)
	}

	if strings.TrimSpace(payload.DiaryEntry) == "" {
		return diary.Summary{}, errors.New("missing diaryEntry")
	}
	if payload.EmotionScore == nil {
		return diary.Summary{}, errors.New("missing emotionScore")
	}
	if payload.Keywords == nil {
		return diary.Summary{}, errors.New("missing keywords")
	}

	result := diary.Summary{
		DiaryEntry:   payload.DiaryEntry,
		EmotionScore: clampScore(*payload.EmotionScore),
		Keywords:     payload.Keywords,
		Highlights:   payload.Highlights,
		GrowthPoints: payload.GrowthPoints,
	}
	if result.Highlights == nil {
		result.Highlights = []string{}
	}
	if result.GrowthPoints == nil {
		result.GrowthPoints = []string{}
	}
	return result, nil
}

func clampScore(raw float64) int {
	score := int(raw)
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
