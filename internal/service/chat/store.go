package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
)

// DefaultDedupeWindow is how long an identical submission is treated as a retry.
const DefaultDedupeWindow = 5 * time.Second

var ErrDuplicateSubmission = errors.New("duplicate submission")

// sourceOrder fixes the order sub-logs are concatenated before the stable sort.
var sourceOrder = []chat.Source{chat.SourceStarter, chat.SourceCheckIn, chat.SourceChat}

// Entry is the content of a turn to be recorded.
type Entry struct {
	UserText       string
	BotText        string
	Emotion        emotion.Label
	Backend        string
	EmergencyFired bool
	NotifiedCount  int
}

type record struct {
	seq uint64
	msg chat.Message
}

// Store is the append-only conversation log of one session. Messages are kept in
// one sub-log per intake path and merged by timestamp on read.
type Store struct {
	sessionID string
	window    time.Duration
	now       func() time.Time

	// turnMu serializes whole turns; mu only guards the logs.
	turnMu sync.Mutex

	mu   sync.Mutex
	seq  uint64
	logs map[chat.Source][]record
}

// NewStore creates an empty store for sessionID.
func NewStore(sessionID string, window time.Duration, now func() time.Time) *Store {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessionID: sessionID,
		window:    window,
		now:       now,
		logs:      make(map[chat.Source][]record, len(sourceOrder)),
	}
}

// Append records a turn in the sub-log for source. It returns
// ErrDuplicateSubmission when the same user text was recorded within the
// dedupe window.
func (s *Store) Append(source chat.Source, entry Entry) (chat.Message, error) {
	if !knownSource(source) {
		return chat.Message{}, fmt.Errorf("unknown message source %q", source)
	}
	if strings.TrimSpace(entry.BotText) == "" {
		return chat.Message{}, fmt.Errorf("reply text is required")
	}
	if entry.EmergencyFired && entry.Emotion != emotion.HighRisk {
		return chat.Message{}, fmt.Errorf("emergency flag requires %s emotion, got %s", emotion.HighRisk, entry.Emotion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if _, dup := s.duplicateLocked(entry.UserText, now); dup {
		return chat.Message{}, ErrDuplicateSubmission
	}

	msg := chat.Message{
		ID:             uuid.NewString(),
		SessionID:      s.sessionID,
		Source:         source,
		UserText:       entry.UserText,
		BotText:        entry.BotText,
		Emotion:        entry.Emotion,
		Backend:        entry.Backend,
		Timestamp:      now,
		EmergencyFired: entry.EmergencyFired,
		NotifiedCount:  entry.NotifiedCount,
	}
	s.seq++
	s.logs[source] = append(s.logs[source], record{seq: s.seq, msg: msg})
	return msg, nil
}

// LockTurn blocks until no other turn is in flight on this session and
// returns the matching unlock. Callers hold it from the duplicate check
// through Append.
func (s *Store) LockTurn() (unlock func()) {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// IsDuplicate reports whether text would be rejected by Append right now.
func (s *Store) IsDuplicate(text string) bool {
	_, dup := s.Duplicate(text)
	return dup
}

// Duplicate returns the latest message with the same user text recorded
// inside the dedupe window.
func (s *Store) Duplicate(text string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicateLocked(text, s.now().UTC())
}

func (s *Store) duplicateLocked(text string, now time.Time) (chat.Message, bool) {
	var (
		found chat.Message
		ok    bool
	)
	for _, records := range s.logs {
		for _, r := range records {
			if r.msg.UserText != text {
				continue
			}
			if absDuration(now.Sub(r.msg.Timestamp)) >= s.window {
				continue
			}
			if !ok || r.msg.Timestamp.After(found.Timestamp) {
				found, ok = r.msg, true
			}
		}
	}
	return found, ok
}

// History returns every message ordered by timestamp. Messages with equal
// timestamps keep their insertion order.
func (s *Store) History() []chat.Message {
	s.mu.Lock()
	merged := s.mergedLocked()
	s.mu.Unlock()

	out := make([]chat.Message, len(merged))
	for i, r := range merged {
		out[i] = r.msg
	}
	return out
}

// Recent returns the last k messages of the merged history.
func (s *Store) Recent(k int) []chat.Message {
	history := s.History()
	if k <= 0 {
		return nil
	}
	if len(history) > k {
		history = history[len(history)-k:]
	}
	return history
}

// Len returns the number of recorded turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, records := range s.logs {
		n += len(records)
	}
	return n
}

// Clear drops every sub-log.
func (s *Store) Clear() {
	s.mu.Lock()
	s.logs = make(map[chat.Source][]record, len(sourceOrder))
	s.mu.Unlock()
}

func (s *Store) mergedLocked() []record {
	merged := make([]record, 0, 16)
	for _, source := range sourceOrder {
		merged = append(merged, s.logs[source]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ti, tj := merged[i].msg.Timestamp, merged[j].msg.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return merged[i].seq < merged[j].seq
	})
	return merged
}

func knownSource(source chat.Source) bool {
	for _, s := range sourceOrder {
		if s == source {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
