package diary

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hayasepd/yorutomo/backend/internal/model/diary"
	"github.com/hayasepd/yorutomo/backend/internal/storage"
)

const (
	collectionKey = "diary-app-storage"
	handoffKey    = "diary-result-handoff"
)

// emptyDigest は過去の日記がまだ無いときのプロンプト向け文言。
const emptyDigest = "過去の日記はまだありません。"

// Store owns the persisted diary collection. Callers receive copies; every
// mutation re-reads the whole collection, changes it and writes it back as
// one unit.
type Store struct {
	mu sync.Mutex
	kv *storage.Store
}

// NewStore binds a diary store to the local key-value storage.
func NewStore(kv *storage.Store) *Store {
	return &Store{kv: kv}
}

// Save derives the bookkeeping fields for a summary and inserts the record at
// the head of the collection. The id stays unique under rapid successive
// saves: millisecond timestamp plus a random suffix.
func (s *Store) Save(sum diary.Summary, sessionDuration int) (diary.SavedDiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	record := diary.SavedDiary{
		ID:              fmt.Sprintf("diary-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Date:            now.Format("2006-01-02"),
		Timestamp:       now.UnixMilli(),
		DiaryEntry:      sum.DiaryEntry,
		EmotionScore:    sum.EmotionScore,
		Keywords:        append([]string(nil), sum.Keywords...),
		Highlights:      append([]string(nil), sum.Highlights...),
		GrowthPoints:    append([]string(nil), sum.GrowthPoints...),
		SessionDuration: sessionDuration,
		CreatedAt:       now.UTC().Format(time.RFC3339),
	}

	collection := s.load()
	collection.Diaries = append([]diary.SavedDiary{record}, collection.Diaries...)
	if err := s.kv.Write(collectionKey, collection); err != nil {
		return diary.SavedDiary{}, err
	}
	return record, nil
}

// GetAll returns every record sorted by timestamp, newest first, regardless
// of stored order.
func (s *Store) GetAll() []diary.SavedDiary {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.load()
	records := append([]diary.SavedDiary(nil), collection.Diaries...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records
}

// GetByID looks up one record.
func (s *Store) GetByID(id string) (diary.SavedDiary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.load().Diaries {
		if record.ID == id {
			return record, true
		}
	}
	return diary.SavedDiary{}, false
}

// DeleteByID removes one record and persists the collection. A missing id
// reports false rather than an error.
func (s *Store) DeleteByID(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.load()
	kept := collection.Diaries[:0]
	found := false
	for _, record := range collection.Diaries {
		if record.ID == id {
			found = true
			continue
		}
		kept = append(kept, record)
	}
	if !found {
		return false, nil
	}

	collection.Diaries = kept
	if err := s.kv.Write(collectionKey, collection); err != nil {
		return false, err
	}
	return true, nil
}

// SummaryText renders a digest of the five most recent records for prompt
// context.
func (s *Store) SummaryText() string {
	records := s.GetAll()
	if len(records) == 0 {
		return emptyDigest
	}
	if len(records) > 5 {
		records = records[:5]
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		keywords := record.Keywords
		if len(keywords) > 3 {
			keywords = keywords[:3]
		}
		lines = append(lines, fmt.Sprintf("%s: 気分%d/10, キーワード: %s",
			record.Date, record.EmotionScore, strings.Join(keywords, ", ")))
	}
	return "過去の日記（最新5件）:\n" + strings.Join(lines, "\n")
}

// SaveHandoff stages one in-flight summary for the result screen.
func (s *Store) SaveHandoff(rec diary.Handoff) error {
	return s.kv.Write(handoffKey, rec)
}

// ConsumeHandoff returns the staged summary and removes it, so a second read
// comes back empty.
func (s *Store) ConsumeHandoff() (diary.Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec diary.Handoff
	if !s.kv.Read(handoffKey, &rec) {
		return diary.Handoff{}, false
	}
	s.kv.Delete(handoffKey)
	return rec, true
}

// load degrades to an empty collection when the backing value is missing or
// corrupt; the next write reinitializes it.
func (s *Store) load() diary.Collection {
	var collection diary.Collection
	if !s.kv.Read(collectionKey, &collection) {
		return diary.Collection{Diaries: []diary.SavedDiary{}}
	}
	if collection.Diaries == nil {
		collection.Diaries = []diary.SavedDiary{}
	}
	return collection
}
