// Package session runs the timed state machine behind one reflection chat:
// countdown, time-up resolution, extension, manual finish and the handoff of
// the finished transcript to the summarization pipeline.
package session

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hayasepd/yorutomo/backend/internal/model/chat"
	"github.com/hayasepd/yorutomo/backend/internal/model/diary"
	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
)

// State enumerates the session lifecycle. Invalid flag combinations of the
// reference behavior (extended but inactive, dialog open while finalizing)
// cannot be expressed here.
type State string

const (
	StateActive     State = "active"
	StateTimeUp     State = "time_up"
	StateExtended   State = "extended"
	StateFinalizing State = "finalizing"
	StateFinished   State = "finished"
)

// WelcomeMessage seeds every new session as the first assistant turn.
const WelcomeMessage = "こんにちは！今日1日お疲れさまでした。今日はどんな1日でしたか？何か印象的なことがあれば教えてください😊\n\n💡 少し話したら、いつでも「まとめる」ボタンで振り返りを完了できます"

// SendFailureMessage is appended in place of a reply when the conversation
// call fails; the session itself stays alive.
const SendFailureMessage = "すみません、エラーが発生しました。もう一度お試しください。"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBusy            = errors.New("another model call is in flight")
	ErrNotActive       = errors.New("session is not accepting messages")
	ErrNotEligible     = errors.New("session cannot be finished yet")
	ErrUnavailable     = errors.New("ai service unavailable")
)

// Responder produces the next assistant utterance for a transcript.
type Responder interface {
	Respond(ctx context.Context, messages []chat.Message, p *profile.UserProfile, diaryDigest string) (string, error)
}

// Summarizer distills a transcript into one diary summary.
type Summarizer interface {
	Summarize(ctx context.Context, messages []chat.Message, p *profile.UserProfile, diaryDigest string) (diary.Summary, error)
}

// ProfileSource supplies the stored user profile for prompt context.
type ProfileSource interface {
	Get() (profile.UserProfile, bool)
}

// DiarySink supplies historical context and receives the finalized result.
type DiarySink interface {
	SummaryText() string
	SaveHandoff(diary.Handoff) error
}

// Event is pushed to session subscribers (the websocket handler).
type Event struct {
	Type      string        `json:"type"` // tick | state | message
	Remaining int           `json:"remaining,omitempty"`
	State     State         `json:"state,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
}

// Snapshot is the externally visible view of one session.
type Snapshot struct {
	ID        string         `json:"id"`
	State     State          `json:"state"`
	Remaining int            `json:"remaining"`
	Budget    int            `json:"budget"`
	Extended  bool           `json:"extended"`
	CanFinish bool           `json:"canFinish"`
	Messages  []chat.Message `json:"messages"`
}

// Config controls session behavior.
type Config struct {
	// Duration is the countdown budget. Zero keeps the 120 s default.
	Duration time.Duration
}

const defaultDuration = 120 * time.Second

type session struct {
	id           string
	state        State
	extended     bool
	budget       int
	remaining    int
	durationMin  int
	messages     []chat.Message
	convInFlight bool
	sumInFlight  bool
	epoch        int
	ticker       Ticker
	tickerStop   chan struct{}
	stopOnce     sync.Once
	subs         map[int]chan Event
	nextSub      int
}

// Controller owns every live session. All state transitions run under one
// mutex; model calls happen outside it with a single-flight guard per
// session.
type Controller struct {
	mu         sync.Mutex
	sessions   map[string]*session
	conv       Responder
	summarizer Summarizer
	profiles   ProfileSource
	diaries    DiarySink
	clock      Clock
	budget     int // seconds
}

// NewController wires the session machine to its collaborators. conv and
// summarizer may be nil when the AI capability is not configured; affected
// operations then report ErrUnavailable.
func NewController(conv Responder, summarizer Summarizer, profiles ProfileSource, diaries DiarySink, clock Clock, cfg Config) *Controller {
	duration := cfg.Duration
	if duration <= 0 {
		duration = defaultDuration
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Controller{
		sessions:   make(map[string]*session),
		conv:       conv,
		summarizer: summarizer,
		profiles:   profiles,
		diaries:    diaries,
		clock:      clock,
		budget:     int(duration / time.Second),
	}
}

// Start provisions a session seeded with the welcome message and arms the
// countdown.
func (c *Controller) Start(_ context.Context) Snapshot {
	welcome := chat.Message{
		ID:        "welcome",
		Content:   WelcomeMessage,
		Sender:    chat.SenderAI,
		Timestamp: c.clock.Now(),
	}

	s := &session{
		id:         uuid.NewString(),
		state:      StateActive,
		budget:     c.budget,
		remaining:  c.budget,
		messages:   []chat.Message{welcome},
		tickerStop: make(chan struct{}),
		subs:       make(map[int]chan Event),
	}
	s.ticker = c.clock.NewTicker(time.Second)

	c.mu.Lock()
	c.sessions[s.id] = s
	snap := snapshotLocked(s)
	c.mu.Unlock()

	go c.runCountdown(s)

	log.Printf("[session] started id=%s budget=%ds", s.id, s.budget)
	return snap
}

// Get returns the current snapshot of a session.
func (c *Controller) Get(id string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return snapshotLocked(s), nil
}

// SendMessage appends a user turn and requests the assistant reply. At most
// one conversation call runs per session; a second send while one is
// outstanding is rejected with ErrBusy, not queued. A conversation failure
// degrades to a fixed apologetic assistant message.
func (c *Controller) SendMessage(ctx context.Context, id, content string) (Snapshot, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if s.state != StateActive && s.state != StateExtended {
		c.mu.Unlock()
		return Snapshot{}, ErrNotActive
	}
	if s.convInFlight {
		c.mu.Unlock()
		return Snapshot{}, ErrBusy
	}
	if c.conv == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrUnavailable
	}

	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    chat.SenderUser,
		Timestamp: c.clock.Now(),
	}
	s.messages = append(s.messages, userMsg)
	s.convInFlight = true
	epoch := s.epoch
	transcript := append([]chat.Message(nil), s.messages...)
	c.mu.Unlock()

	c.broadcast(s, Event{Type: "message", Message: &userMsg})

	prof, digest := c.promptContext()
	reply, err := c.conv.Respond(ctx, transcript, prof, digest)

	c.mu.Lock()
	s.convInFlight = false
	if s.epoch != epoch {
		// Finalization began while the call was outstanding; the stale
		// reply is dropped rather than appended behind the summary.
		snap := snapshotLocked(s)
		c.mu.Unlock()
		log.Printf("[session] dropped stale reply id=%s", s.id)
		return snap, nil
	}
	if err != nil {
		log.Printf("[session] conversation call failed id=%s: %v", s.id, err)
		reply = SendFailureMessage
	}
	aiMsg := chat.Message{
		ID:        uuid.NewString(),
		Content:   reply,
		Sender:    chat.SenderAI,
		Timestamp: c.clock.Now(),
	}
	s.messages = append(s.messages, aiMsg)
	snap := snapshotLocked(s)
	c.mu.Unlock()

	c.broadcast(s, Event{Type: "message", Message: &aiMsg})
	return snap, nil
}

// Extend resolves a time-up by disabling the countdown for the rest of the
// session. The timer never re-arms.
func (c *Controller) Extend(id string) (Snapshot, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if s.state != StateTimeUp {
		c.mu.Unlock()
		return Snapshot{}, ErrNotActive
	}
	s.state = StateExtended
	s.extended = true
	snap := snapshotLocked(s)
	c.mu.Unlock()

	c.stopCountdown(s)
	c.broadcast(s, Event{Type: "state", State: StateExtended})
	log.Printf("[session] extended id=%s", s.id)
	return snap, nil
}

// Finish finalizes the session: the transcript is summarized and the result
// staged for the result screen. On a capability failure the session stays in
// Finalizing and the call may be retried.
func (c *Controller) Finish(ctx context.Context, id string) (diary.Handoff, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()
		return diary.Handoff{}, ErrSessionNotFound
	}
	switch s.state {
	case StateTimeUp:
		// finish-now is always offered at time-up
	case StateActive, StateExtended:
		if !eligibleLocked(s) {
			c.mu.Unlock()
			return diary.Handoff{}, ErrNotEligible
		}
	case StateFinalizing:
		if s.sumInFlight {
			c.mu.Unlock()
			return diary.Handoff{}, ErrBusy
		}
		// previous attempt failed; retry
	default:
		c.mu.Unlock()
		return diary.Handoff{}, ErrNotActive
	}
	if c.summarizer == nil {
		c.mu.Unlock()
		return diary.Handoff{}, ErrUnavailable
	}

	if s.state != StateFinalizing {
		s.durationMin = int(math.Round(float64(s.budget-s.remaining) / 60.0))
	}
	s.state = StateFinalizing
	s.epoch++
	s.sumInFlight = true
	transcript := append([]chat.Message(nil), s.messages...)
	c.mu.Unlock()

	c.stopCountdown(s)
	c.broadcast(s, Event{Type: "state", State: StateFinalizing})

	prof, digest := c.promptContext()
	sum, err := c.summarizer.Summarize(ctx, transcript, prof, digest)

	c.mu.Lock()
	s.sumInFlight = false
	if err != nil {
		c.mu.Unlock()
		log.Printf("[session] summarization failed id=%s: %v", s.id, err)
		return diary.Handoff{}, err
	}

	handoff := diary.Handoff{
		DiaryEntry:      sum.DiaryEntry,
		EmotionScore:    sum.EmotionScore,
		Keywords:        sum.Keywords,
		Highlights:      sum.Highlights,
		GrowthPoints:    sum.GrowthPoints,
		SessionDuration: s.durationMin,
	}
	s.state = StateFinished
	c.mu.Unlock()

	c.broadcast(s, Event{Type: "state", State: StateFinished})

	if c.diaries != nil {
		if err := c.diaries.SaveHandoff(handoff); err != nil {
			log.Printf("[session] failed to stage result id=%s: %v", s.id, err)
		}
	}

	// The result now lives in the store; the session object is done.
	c.mu.Lock()
	delete(c.sessions, s.id)
	c.mu.Unlock()

	log.Printf("[session] finished id=%s duration=%dmin", s.id, handoff.SessionDuration)
	return handoff, nil
}

// Subscribe registers a listener for session events. The returned cancel
// func must be called when the listener goes away.
func (c *Controller) Subscribe(id string) (<-chan Event, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan Event, 16)
	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch

	cancel := func() {
		c.mu.Lock()
		delete(s.subs, key)
		c.mu.Unlock()
	}
	return ch, cancel, nil
}

// runCountdown drives the per-second tick until the session leaves Active.
func (c *Controller) runCountdown(s *session) {
	for {
		select {
		case <-s.ticker.C():
			if !c.tick(s) {
				return
			}
		case <-s.tickerStop:
			return
		}
	}
}

// tick decrements the countdown by one second. It reports false once the
// countdown is over; ticks outside Active are no-ops.
func (c *Controller) tick(s *session) bool {
	c.mu.Lock()
	if s.state != StateActive {
		c.mu.Unlock()
		return false
	}

	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.state = StateTimeUp
		c.mu.Unlock()

		c.stopCountdown(s)
		c.broadcast(s, Event{Type: "tick", Remaining: 0})
		c.broadcast(s, Event{Type: "state", State: StateTimeUp})
		log.Printf("[session] time up id=%s", s.id)
		return false
	}

	remaining := s.remaining
	c.mu.Unlock()

	c.broadcast(s, Event{Type: "tick", Remaining: remaining})
	return true
}

func (c *Controller) stopCountdown(s *session) {
	s.stopOnce.Do(func() {
		close(s.tickerStop)
		s.ticker.Stop()
	})
}

// broadcast fans an event out to subscribers without blocking on slow ones.
func (c *Controller) broadcast(s *session, ev Event) {
	c.mu.Lock()
	subs := make([]chan Event, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) promptContext() (*profile.UserProfile, string) {
	var prof *profile.UserProfile
	if c.profiles != nil {
		if p, ok := c.profiles.Get(); ok {
			prof = &p
		}
	}
	digest := ""
	if c.diaries != nil {
		digest = c.diaries.SummaryText()
	}
	return prof, digest
}

// eligibleLocked applies the manual-finish rule: enough of a conversation
// happened, or the session was extended.
func eligibleLocked(s *session) bool {
	return (len(s.messages) >= 4 && !s.extended) || s.extended
}

func snapshotLocked(s *session) Snapshot {
	canFinish := false
	switch s.state {
	case StateActive, StateExtended:
		canFinish = eligibleLocked(s)
	case StateTimeUp:
		canFinish = true
	}
	return Snapshot{
		ID:        s.id,
		State:     s.state,
		Remaining: s.remaining,
		Budget:    s.budget,
		Extended:  s.extended,
		CanFinish: canFinish,
		Messages:  append([]chat.Message(nil), s.messages...),
	}
}
