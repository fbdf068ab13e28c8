package diary

// Summary is the structured result distilled from one finished session.
// It is produced exactly once per session and is never partially valid:
// either every field came from a successfully parsed model response, or the
// whole value is the configured fallback.
type Summary struct {
	DiaryEntry   string   `json:"diaryEntry"`
	EmotionScore int      `json:"emotionScore"`
	Keywords     []string `json:"keywords"`
	Highlights   []string `json:"highlights"`
	GrowthPoints []string `json:"growthPoints"`
}

// SavedDiary is a Summary persisted with its derived bookkeeping fields.
type SavedDiary struct {
	ID              string   `json:"id"`
	Date            string   `json:"date"` // YYYY-MM-DD, local time
	Timestamp       int64    `json:"timestamp"`
	DiaryEntry      string   `json:"diaryEntry"`
	EmotionScore    int      `json:"emotionScore"`
	Keywords        []string `json:"keywords"`
	Highlights      []string `json:"highlights"`
	GrowthPoints    []string `json:"growthPoints"`
	SessionDuration int      `json:"sessionDuration"` // minutes
	CreatedAt       string   `json:"createdAt"`       // RFC 3339
}

// Collection is the persisted shape of the whole diary set, stored as one
// JSON object and always rewritten wholesale.
type Collection struct {
	Diaries []SavedDiary `json:"diaries"`
}

// Handoff carries one in-flight summary from session finalization to the
// result screen. It is consumed exactly once.
type Handoff struct {
	DiaryEntry      string   `json:"diaryEntry"`
	EmotionScore    int      `json:"emotionScore"`
	Keywords        []string `json:"keywords"`
	Highlights      []string `json:"highlights"`
	GrowthPoints    []string `json:"growthPoints"`
	SessionDuration int      `json:"sessionDuration"`
}

// Summary returns the summary portion of the handoff record.
func (h Handoff) Summary() Summary {
	return Summary{
		DiaryEntry:   h.DiaryEntry,
		EmotionScore: h.EmotionScore,
		Keywords:     h.Keywords,
		Highlights:   h.Highlights,
		GrowthPoints: h.GrowthPoints,
	}
}
