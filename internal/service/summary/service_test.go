package summary

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/diary"
)

// fakeChatModel returns a canned completion and records what it was asked.
type fakeChatModel struct {
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func newTestService(t *testing.T, fake *fakeChatModel) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), fake, Config{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc
}

func transcript() []chat.Message {
	return []chat.Message{
		{ID: "welcome", Content: "今日はどんな一日でしたか？", Sender: chat.SenderAI},
		{ID: "1", Content: "仕事が忙しかったけど乗り切った", Sender: chat.SenderUser},
		{ID: "2", Content: "それは大変でしたね。", Sender: chat.SenderAI},
		{ID: "3", Content: "夜に散歩してリフレッシュした", Sender: chat.SenderUser},
	}
}

func TestSummarizeParsesValidJSON(t *testing.T) {
	fake := &fakeChatModel{reply: `{"diaryEntry":"忙しい一日だったが散歩で回復した。","emotionScore":6,"keywords":["仕事","散歩"],"highlights":["夜の散歩"],"growthPoints":["切り替え"]}`}
	svc := newTestService(t, fake)

	got, err := svc.Summarize(context.Background(), transcript(), nil, "")
	if err != nil {
		t.Fatalf("Summarize err: %v", err)
	}
	if got.DiaryEntry != "忙しい一日だったが散歩で回復した。" || got.EmotionScore != 6 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"仕事", "散歩"}) {
		t.Fatalf("unexpected keywords: %v", got.Keywords)
	}
}

func TestSummarizeStripsMarkdownFence(t *testing.T) {
	fake := &fakeChatModel{reply: "```json\n{\"diaryEntry\":\"entry\",\"emotionScore\":5,\"keywords\":[]}\n```"}
	svc := newTestService(t, fake)

	got, err := svc.Summarize(context.Background(), transcript(), nil, "")
	if err != nil {
		t.Fatalf("Summarize err: %v", err)
	}
	if got.DiaryEntry != "entry" || got.EmotionScore != 5 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestSummarizeInvalidJSONYieldsFallback(t *testing.T) {
	fake := &fakeChatModel{reply: "今日はいい日でした。JSONではありません。"}
	svc := newTestService(t, fake)

	got, err := svc.Summarize(context.Background(), transcript(), nil, "")
	if err != nil {
		t.Fatalf("expected fallback without error, got %v", err)
	}
	if !reflect.DeepEqual(got, FallbackResult()) {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestSummarizeMissingRequiredFieldYieldsFallback(t *testing.T) {
	cases := map[string]string{
		"no diaryEntry":   `{"emotionScore":5,"keywords":["a"]}`,
		"no emotionScore": `{"diaryEntry":"entry","keywords":["a"]}`,
		"no keywords":     `{"diaryEntry":"entry","emotionScore":5}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, &fakeChatModel{reply: reply})
			got, err := svc.Summarize(context.Background(), transcript(), nil, "")
			if err != nil {
				t.Fatalf("expected fallback without error, got %v", err)
			}
			if !reflect.DeepEqual(got, FallbackResult()) {
				t.Fatalf("expected fallback, got %+v", got)
			}
		})
	}
}

func TestSummarizeClampsScore(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want int
	}{
		"above range": {"15", 10},
		"below range": {"0", 1},
		"fractional":  {"6.8", 6},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			reply := `{"diaryEntry":"entry","emotionScore":` + tc.raw + `,"keywords":[]}`
			svc := newTestService(t, &fakeChatModel{reply: reply})
			got, err := svc.Summarize(context.Background(), transcript(), nil, "")
			if err != nil {
				t.Fatalf("Summarize err: %v", err)
			}
			if got.EmotionScore != tc.want {
				t.Fatalf("score = %d, want %d", got.EmotionScore, tc.want)
			}
		})
	}
}

func TestSummarizeNormalizesOptionalArrays(t *testing.T) {
	fake := &fakeChatModel{reply: `{"diaryEntry":"entry","emotionScore":5,"keywords":["a"]}`}
	svc := newTestService(t, fake)

	got, err := svc.Summarize(context.Background(), transcript(), nil, "")
	if err != nil {
		t.Fatalf("Summarize err: %v", err)
	}
	if got.Highlights == nil || got.GrowthPoints == nil {
		t.Fatalf("optional arrays must be empty slices, got %+v", got)
	}
	if len(got.Highlights) != 0 || len(got.GrowthPoints) != 0 {
		t.Fatalf("optional arrays must be empty, got %+v", got)
	}
}

func TestSummarizeFeedsOnlyUserMessagesAsEvidence(t *testing.T) {
	fake := &fakeChatModel{reply: `{"diaryEntry":"entry","emotionScore":5,"keywords":[]}`}
	svc := newTestService(t, fake)

	if _, err := svc.Summarize(context.Background(), transcript(), nil, ""); err != nil {
		t.Fatalf("Summarize err: %v", err)
	}

	if len(fake.got) != 2 {
		t.Fatalf("expected system + evidence messages, got %d", len(fake.got))
	}
	evidence := fake.got[1].Content
	if !strings.Contains(evidence, "仕事が忙しかった") || !strings.Contains(evidence, "散歩してリフレッシュ") {
		t.Fatalf("evidence missing user turns: %q", evidence)
	}
	if strings.Contains(evidence, "それは大変でしたね") {
		t.Fatalf("assistant turns must not appear in evidence: %q", evidence)
	}
	if !strings.Contains(evidence, "以下の会話から日記を生成してください") {
		t.Fatalf("evidence missing instruction prefix: %q", evidence)
	}
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: "   "})

	if _, err := svc.Summarize(context.Background(), transcript(), nil, ""); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestSummarizeModelErrorPropagates(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{err: errors.New("upstream down")})

	if _, err := svc.Summarize(context.Background(), transcript(), nil, ""); err == nil {
		t.Fatal("expected error from failed model call")
	}
}

func TestSummarizeCustomFallback(t *testing.T) {
	custom := diary.Summary{DiaryEntry: "override", EmotionScore: 3, Keywords: []string{}}
	svc, err := NewService(context.Background(), &fakeChatModel{reply: "not json"}, Config{Fallback: &custom})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	got, err := svc.Summarize(context.Background(), transcript(), nil, "")
	if err != nil {
		t.Fatalf("Summarize err: %v", err)
	}
	if got.DiaryEntry != "override" || got.EmotionScore != 3 {
		t.Fatalf("expected custom fallback, got %+v", got)
	}
}
