package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
	chatservice "github.com/agricare/backend/internal/service/chat"
)

var (
	ErrUnknownStarter = errors.New("unknown conversation starter")
	ErrUnknownMood    = errors.New("unknown check-in mood")
)

// Starter groups.
const (
	GroupFarming  = "farming"
	GroupPersonal = "personal"
)

// Starter is a scripted opening the farmer can pick instead of typing.
type Starter struct {
	ID       string        `json:"id"`
	Group    string        `json:"group"`
	Title    string        `json:"title"`
	UserText string        `json:"userText"`
	Emotion  emotion.Label `json:"emotion"`
}

var starters = []Starter{
	{ID: "crop-problems", Group: GroupFarming, Title: "Crop Problems", UserText: "I'm having issues with my crops", Emotion: emotion.Sad},
	{ID: "weather-concerns", Group: GroupFarming, Title: "Weather Concerns", UserText: "The weather is worrying me", Emotion: emotion.Sad},
	{ID: "market-prices", Group: GroupFarming, Title: "Market Prices", UserText: "I want to talk about crop prices", Emotion: emotion.Sad},
	{ID: "new-techniques", Group: GroupFarming, Title: "New Techniques", UserText: "I'm interested in new farming methods", Emotion: emotion.Happy},
	{ID: "harvest-success", Group: GroupFarming, Title: "Harvest Success", UserText: "My harvest turned out great!", Emotion: emotion.Happy},
	{ID: "feeling-stressed", Group: GroupPersonal, Title: "Feeling Stressed", UserText: "I'm feeling really stressed lately", Emotion: emotion.Sad},
	{ID: "need-support", Group: GroupPersonal, Title: "Need Support", UserText: "I could use some emotional support", Emotion: emotion.Sad},
	{ID: "share-success", Group: GroupPersonal, Title: "Share Success", UserText: "I want to share some good news", Emotion: emotion.Happy},
	{ID: "family-matters", Group: GroupPersonal, Title: "Family Matters", UserText: "I want to talk about family issues", Emotion: emotion.Sad},
	{ID: "just-chat", Group: GroupPersonal, Title: "Just Chat", UserText: "I'd like to have a casual conversation", Emotion: emotion.Happy},
}

// starterReplies are keyed by group then emotion; %s is the farmer's name.
var starterReplies = map[string]map[emotion.Label]string{
	GroupFarming: {
		emotion.Sad:   "I understand, %s. Farming can be really challenging sometimes. Tell me more about what's been difficult for you.",
		emotion.Happy: "That's fantastic, %s! 😊 I love hearing about farming successes. Tell me more about what went well!",
	},
	GroupPersonal: {
		emotion.Sad:   "I'm here for you, %s. 💙 It takes courage to reach out. What's been weighing on your mind?",
		emotion.Happy: "That's wonderful, %s! 😊 I love hearing from you. What's been bringing you joy lately?",
	},
}

// Mood is a quick check-in choice.
type Mood string

const (
	MoodGreat      Mood = "great"
	MoodOkay       Mood = "okay"
	MoodStruggling Mood = "struggling"
	MoodFrustrated Mood = "frustrated"
)

type checkInReply struct {
	emotion emotion.Label
	text    string
}

var checkIns = map[Mood]checkInReply{
	MoodGreat:      {emotion.Happy, "That's wonderful to hear! What made today good for you?"},
	MoodOkay:       {emotion.Sad, "I appreciate you sharing that. What's been on your mind lately?"},
	MoodStruggling: {emotion.Sad, "I'm here for you. Would you like to talk about what's been difficult?"},
	MoodFrustrated: {emotion.Angry, "I can sense your frustration. What happened that made you feel this way?"},
}

// Starters lists the scripted conversation openers.
func (s *Service) Starters() []Starter {
	return append([]Starter(nil), starters...)
}

// StartConversation records a scripted opener and its canned reply in the
// starter sub-log. No backend is called.
func (s *Service) StartConversation(ctx context.Context, sessionID, starterID string) (chat.Message, error) {
	starter, ok := findStarter(starterID)
	if !ok {
		return chat.Message{}, fmt.Errorf("%w: %s", ErrUnknownStarter, starterID)
	}
	session, store, err := s.open(ctx, sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	defer store.LockTurn()()

	reply := fmt.Sprintf(starterReplies[starter.Group][starter.Emotion], s.profile(session.FarmerID).DisplayName())
	msg, err := store.Append(chat.SourceStarter, chatservice.Entry{
		UserText: starter.UserText,
		BotText:  reply,
		Emotion:  starter.Emotion,
		Backend:  "starter",
	})
	if err != nil {
		return chat.Message{}, err
	}
	log.Info().Str("session", sessionID).Str("starter", starter.ID).Msg("conversation started")
	return msg, nil
}

// CheckIn records a quick mood check-in in the check-in sub-log.
func (s *Service) CheckIn(ctx context.Context, sessionID string, mood Mood) (chat.Message, error) {
	mood = Mood(strings.ToLower(strings.TrimSpace(string(mood))))
	reply, ok := checkIns[mood]
	if !ok {
		return chat.Message{}, fmt.Errorf("%w: %s", ErrUnknownMood, mood)
	}
	_, store, err := s.open(ctx, sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	defer store.LockTurn()()

	return store.Append(chat.SourceCheckIn, chatservice.Entry{
		UserText: fmt.Sprintf("I'm feeling %s", mood),
		BotText:  reply.text,
		Emotion:  reply.emotion,
		Backend:  "checkin",
	})
}

func findStarter(id string) (Starter, bool) {
	for _, st := range starters {
		if st.ID == id {
			return st, true
		}
	}
	return Starter{}, false
}
