package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeroprep/examd/internal/config"
	"github.com/aeroprep/examd/internal/model"
	"github.com/aeroprep/examd/internal/storage"
)

// Mutation errors surfaced to the caller. Persistence failures are not among
// them: a failed write leaves the in-memory session authoritative.
var (
	ErrNoSession       = errors.New("store: no active session")
	ErrUnknownQuestion = errors.New("store: question id not in session")
	ErrOptionRange     = errors.New("store: option index out of range")
)

// SessionStore owns the canonical ExamSession and mediates every mutation.
// Each mutation is written through to the persistence gateway as a whole-value
// replacement of the active-session key.
//
// The store is not safe for concurrent use; the lifecycle controller
// serializes access to it.
type SessionStore struct {
	gateway storage.Gateway
	log     zerolog.Logger
	session *model.ExamSession
}

// NewSessionStore creates a SessionStore with no active session.
func NewSessionStore(gateway storage.Gateway, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		gateway: gateway,
		log:     log.With().Str("component", "session_store").Logger(),
	}
}

// Session returns the canonical session, or nil when none is active.
func (s *SessionStore) Session() *model.ExamSession {
	return s.session
}

// Create builds a fresh session from generated questions and persists it.
// The full duration is on the clock.
func (s *SessionStore) Create(ctx context.Context, questions []model.Question, cfg model.ExamConfig) *model.ExamSession {
	duration := model.DurationForCount(cfg.QuestionCount)

	s.session = &model.ExamSession{
		Questions:        questions,
		UserAnswers:      make(map[string]int),
		FlaggedQuestions: make(map[string]struct{}),
		StartTime:        time.Now().UnixMilli(),
		DurationSeconds:  duration,
		SecondsRemaining: duration,
		Subject:          cfg.Subject,
		Language:         cfg.Language,
	}
	s.persist(ctx)

	return s.session
}

// Restore loads the active-session key and rehydrates it as the canonical
// session. A missing key returns (nil, nil). A corrupt value is deleted and
// also reported as absent — a broken persisted session must never prevent
// startup.
func (s *SessionStore) Restore(ctx context.Context) (*model.ExamSession, error) {
	data, err := s.gateway.Get(ctx, config.StorageKey.ActiveSession())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active session: %w", err)
	}

	session, err := decodeSession(data)
	if err != nil {
		s.log.Warn().Msg("Discarding corrupt persisted session")
		if delErr := s.gateway.Delete(ctx, config.StorageKey.ActiveSession()); delErr != nil {
			s.log.Error().Err(delErr).Msg("Failed to clear corrupt session key")
		}
		return nil, nil
	}

	s.session = session
	return session, nil
}

// SetAnswer upserts the selected option for a question and persists.
func (s *SessionStore) SetAnswer(ctx context.Context, questionID string, optionIndex int) error {
	if s.session == nil {
		return ErrNoSession
	}
	q, ok := s.session.QuestionByID(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrOptionRange
	}

	s.session.UserAnswers[questionID] = optionIndex
	s.persist(ctx)
	return nil
}

// ToggleFlag flips flag membership for a question and persists. Toggling
// twice restores the original set.
func (s *SessionStore) ToggleFlag(ctx context.Context, questionID string) error {
	if s.session == nil {
		return ErrNoSession
	}
	if _, ok := s.session.QuestionByID(questionID); !ok {
		return ErrUnknownQuestion
	}

	if s.session.Flagged(questionID) {
		delete(s.session.FlaggedQuestions, questionID)
	} else {
		s.session.FlaggedQuestions[questionID] = struct{}{}
	}
	s.persist(ctx)
	return nil
}

// SetRemaining updates the resume point. The value is clamped into
// [0, duration]; only SecondsRemaining changes.
func (s *SessionStore) SetRemaining(ctx context.Context, seconds int) error {
	if s.session == nil {
		return ErrNoSession
	}

	if seconds < 0 {
		seconds = 0
	}
	if seconds > s.session.DurationSeconds {
		seconds = s.session.DurationSeconds
	}
	s.session.SecondsRemaining = seconds
	s.persist(ctx)
	return nil
}

// ClearPersisted deletes the active-session key while keeping the in-memory
// session for the results view.
func (s *SessionStore) ClearPersisted(ctx context.Context) {
	if err := s.gateway.Delete(ctx, config.StorageKey.ActiveSession()); err != nil {
		s.log.Error().Err(err).Msg("Failed to delete active session key")
	}
}

// Reset drops the in-memory session and removes the persisted copy.
func (s *SessionStore) Reset(ctx context.Context) {
	s.session = nil
	s.ClearPersisted(ctx)
}

// persist writes the whole session through the gateway. A write failure is
// logged and swallowed: the in-memory state stays the resume source of truth
// for this process, and later mutations retry the write anyway.
func (s *SessionStore) persist(ctx context.Context) {
	data, err := encodeSession(s.session)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode session")
		return
	}
	if err := s.gateway.Set(ctx, config.StorageKey.ActiveSession(), data); err != nil {
		s.log.Warn().Err(err).Msg("Session write failed, in-memory state remains authoritative")
	}
}
