// Package polls runs group votes inside a trip.
package polls

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/travelties/service_layer/internal/app/domain/poll"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	minOptions  = 2
	maxOptions  = 10
	maxQuestion = 300
	maxOption   = 200
)

// Service implements poll operations.
type Service struct {
	store  storage.PollStore
	access *access.Checker
	events realtime.Publisher
	log    *logger.Logger
	now    func() time.Time
}

// New creates the service.
func New(store storage.PollStore, checker *access.Checker, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("polls")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{store: store, access: checker, events: events, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput is the body of POST /trips/{id}/polls.
type CreateInput struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	AllowMultiple bool       `json:"allowMultiple"`
	Anonymous     bool       `json:"anonymous"`
	ClosesAt      *time.Time `json:"closesAt"`
}

// View is a poll as seen by one member. Raw votes are hidden for anonymous
// polls.
type View struct {
	poll.Poll
	Results []poll.Result `json:"results"`
	MyVotes []string      `json:"myVotes"`
	Open    bool          `json:"open"`
}

func (s *Service) view(p poll.Poll, userID string) View {
	v := View{Poll: p, Results: p.Results(), MyVotes: []string{}, Open: p.IsOpen(s.now())}
	for _, o := range p.Options {
		for _, voter := range p.Votes[o.ID] {
			if voter == userID {
				v.MyVotes = append(v.MyVotes, o.ID)
			}
		}
	}
	if p.Anonymous {
		v.Votes = nil
	}
	return v
}

// Create opens a poll.
func (s *Service) Create(ctx context.Context, userID, tripID string, in CreateInput) (View, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return View{}, err
	}
	question := strings.TrimSpace(in.Question)
	if question == "" || len(question) > maxQuestion {
		return View{}, svcerrors.Validation("question must be 1-%d characters", maxQuestion)
	}
	if len(in.Options) < minOptions || len(in.Options) > maxOptions {
		return View{}, svcerrors.Validation("a poll needs %d-%d options", minOptions, maxOptions)
	}
	seen := make(map[string]bool, len(in.Options))
	options := make([]poll.Option, 0, len(in.Options))
	for _, raw := range in.Options {
		text := strings.TrimSpace(raw)
		if text == "" || len(text) > maxOption {
			return View{}, svcerrors.Validation("options must be 1-%d characters", maxOption)
		}
		key := strings.ToLower(text)
		if seen[key] {
			return View{}, svcerrors.Validation("option %q is duplicated", text)
		}
		seen[key] = true
		options = append(options, poll.Option{ID: uuid.NewString(), Text: text})
	}
	if in.ClosesAt != nil && !in.ClosesAt.After(s.now()) {
		return View{}, svcerrors.Validation("closesAt must be in the future")
	}

	p, err := s.store.CreatePoll(ctx, poll.Poll{
		TripID:        tripID,
		Question:      question,
		Options:       options,
		AllowMultiple: in.AllowMultiple,
		Anonymous:     in.Anonymous,
		CreatedBy:     userID,
		ClosesAt:      in.ClosesAt,
		Votes:         map[string][]string{},
	})
	if err != nil {
		return View{}, access.StoreError(err, "poll", "")
	}
	s.log.WithField("trip_id", tripID).WithField("poll_id", p.ID).Info("poll created")
	return s.view(p, userID), nil
}

// List returns the trip's polls, newest first.
func (s *Service) List(ctx context.Context, userID, tripID string) ([]View, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	polls, err := s.store.ListPolls(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "poll", "")
	}
	out := make([]View, 0, len(polls))
	for _, p := range polls {
		out = append(out, s.view(p, userID))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, tripID, pollID string) (poll.Poll, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return poll.Poll{}, access.StoreError(err, "poll", pollID)
	}
	if p.TripID != tripID {
		return poll.Poll{}, svcerrors.NotFound("poll", pollID)
	}
	return p, nil
}

// Get returns one poll with results.
func (s *Service) Get(ctx context.Context, userID, tripID, pollID string) (View, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return View{}, err
	}
	p, err := s.load(ctx, tripID, pollID)
	if err != nil {
		return View{}, err
	}
	return s.view(p, userID), nil
}

func withoutVoter(votes map[string][]string, userID string) map[string][]string {
	out := make(map[string][]string, len(votes))
	for opt, voters := range votes {
		kept := make([]string, 0, len(voters))
		for _, v := range voters {
			if v != userID {
				kept = append(kept, v)
			}
		}
		out[opt] = kept
	}
	return out
}

func (s *Service) mutateVotes(ctx context.Context, userID, tripID, pollID string, fn func(p *poll.Poll) error) (View, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return View{}, err
	}
	now := s.now()
	p, err := s.store.MutatePoll(ctx, pollID, func(p *poll.Poll) error {
		if p.TripID != tripID {
			return svcerrors.NotFound("poll", pollID)
		}
		if !p.IsOpen(now) {
			return svcerrors.Conflict("poll is closed")
		}
		return fn(p)
	})
	if err != nil {
		return View{}, access.StoreError(err, "poll", pollID)
	}
	v := s.view(p, userID)
	s.events.Publish(realtime.Event{
		Type: realtime.EventPollVoted, TripID: tripID, ActorID: userID,
		Data: map[string]interface{}{"pollId": pollID, "results": v.Results},
	})
	return v, nil
}

// Vote replaces the caller's vote with optionIDs.
func (s *Service) Vote(ctx context.Context, userID, tripID, pollID string, optionIDs []string) (View, error) {
	if len(optionIDs) == 0 {
		return View{}, svcerrors.Validation("at least one option is required")
	}
	return s.mutateVotes(ctx, userID, tripID, pollID, func(p *poll.Poll) error {
		if !p.AllowMultiple && len(optionIDs) > 1 {
			return svcerrors.Validation("this poll allows a single choice")
		}
		chosen := make(map[string]bool, len(optionIDs))
		for _, id := range optionIDs {
			if !p.HasOption(id) {
				return svcerrors.Validation("unknown option %s", id)
			}
			chosen[id] = true
		}
		p.Votes = withoutVoter(p.Votes, userID)
		for _, o := range p.Options {
			if chosen[o.ID] {
				p.Votes[o.ID] = append(p.Votes[o.ID], userID)
			}
		}
		return nil
	})
}

// Retract removes the caller's vote.
func (s *Service) Retract(ctx context.Context, userID, tripID, pollID string) (View, error) {
	return s.mutateVotes(ctx, userID, tripID, pollID, func(p *poll.Poll) error {
		p.Votes = withoutVoter(p.Votes, userID)
		return nil
	})
}

// Close stops voting. The creator or the trip owner may close.
func (s *Service) Close(ctx context.Context, userID, tripID, pollID string) (View, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return View{}, err
	}
	p, err := s.store.MutatePoll(ctx, pollID, func(p *poll.Poll) error {
		if p.TripID != tripID {
			return svcerrors.NotFound("poll", pollID)
		}
		if p.CreatedBy != userID && !grant.IsOwner(userID) {
			return svcerrors.Forbidden("only the poll creator or trip owner can close a poll")
		}
		p.Closed = true
		return nil
	})
	if err != nil {
		return View{}, access.StoreError(err, "poll", pollID)
	}
	return s.view(p, userID), nil
}

// Delete removes a poll. Only its creator may delete it.
func (s *Service) Delete(ctx context.Context, userID, tripID, pollID string) error {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return err
	}
	p, err := s.load(ctx, tripID, pollID)
	if err != nil {
		return err
	}
	if p.CreatedBy != userID {
		return svcerrors.Forbidden("only the poll creator can delete a poll")
	}
	if err := s.store.DeletePoll(ctx, pollID); err != nil {
		return access.StoreError(err, "poll", pollID)
	}
	return nil
}

// CloseExpired closes every open poll whose deadline has passed and returns
// how many were closed.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.store.ListExpiredOpenPolls(ctx, now)
	if err != nil {
		return 0, access.StoreError(err, "poll", "")
	}
	closed := 0
	for _, p := range expired {
		_, err := s.store.MutatePoll(ctx, p.ID, func(p *poll.Poll) error {
			p.Closed = true
			return nil
		})
		if err != nil {
			s.log.WithError(err).WithField("poll_id", p.ID).Warn("close expired poll")
			continue
		}
		closed++
	}
	if closed > 0 {
		s.log.WithField("closed", closed).Info("expired polls closed")
	}
	return closed, nil
}
