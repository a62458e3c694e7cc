package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aeroprep/examd/internal/config"
	"github.com/aeroprep/examd/internal/generator"
	"github.com/aeroprep/examd/internal/model"
	"github.com/aeroprep/examd/internal/scoring"
	"github.com/aeroprep/examd/internal/storage"
	"github.com/aeroprep/examd/internal/store"
	"github.com/aeroprep/examd/internal/timer"
)

// State machine errors surfaced to the presentation layer.
var (
	ErrExamInProgress = errors.New("lifecycle: an exam is already active or loading")
	ErrNoActiveExam   = errors.New("lifecycle: no active exam")
	ErrInvalidConfig  = errors.New("lifecycle: invalid exam configuration")
	ErrInvalidState   = errors.New("lifecycle: operation not allowed in current state")
)

// Config configures a Controller.
type Config struct {
	Gateway   storage.Gateway
	Generator generator.Generator
	Logger    zerolog.Logger

	// TickInterval overrides the reconciler cadence. Tests shorten it;
	// zero means the production one-second cadence.
	TickInterval time.Duration
	// Now overrides the wall-clock source for the reconciler.
	Now func() time.Time
}

// Snapshot is the observable state handed to the presentation layer. Session
// is a deep copy; mutating it cannot touch the canonical value.
type Snapshot struct {
	State     model.AppState          `json:"state"`
	Session   *model.ExamSession      `json:"-"`
	History   []model.ExamHistoryItem `json:"history"`
	Language  model.Language          `json:"language"`
	LastError string                  `json:"last_error,omitempty"`
	Result    *scoring.Result         `json:"result,omitempty"`
}

// Controller owns the application state machine:
//
//	HOME → LOADING → ACTIVE → RESULTS → HOME, plus HOME ↔ INFO.
//
// It creates sessions from generated questions, restores a persisted session
// on startup, drives the countdown through a timer reconciler it owns, and
// finalizes submitted sessions into history. All state is behind one mutex,
// which serializes user calls, reconciler callbacks and the generator's
// completion onto a single logical thread of control.
type Controller struct {
	sessions  *store.SessionStore
	history   *store.HistoryStore
	generator generator.Generator
	log       zerolog.Logger
	gateway   storage.Gateway

	tickInterval time.Duration
	now          func() time.Time

	mu           sync.Mutex
	state        model.AppState
	historyItems []model.ExamHistoryItem
	language     model.Language
	lastError    string
	lastResult   *scoring.Result

	// reconciler is the cancellable periodic task owned by the ACTIVE
	// state. Callbacks from a reconciler that is no longer current are
	// dropped, so a stale tick can never mutate a newer session.
	reconciler *timer.Reconciler
}

// New creates a Controller in the HOME state. Call Bootstrap to restore
// persisted state before serving.
func New(cfg Config) *Controller {
	log := cfg.Logger.With().Str("component", "lifecycle").Logger()
	return &Controller{
		sessions:     store.NewSessionStore(cfg.Gateway, cfg.Logger),
		history:      store.NewHistoryStore(cfg.Gateway, cfg.Logger),
		generator:    cfg.Generator,
		gateway:      cfg.Gateway,
		log:          log,
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		state:        model.StateHome,
		language:     model.LanguageEnglish,
		historyItems: []model.ExamHistoryItem{},
	}
}

// Bootstrap restores persisted state on process start: exam history, the
// language preference hint, and — if present and structurally valid — the
// active session, which rehydrates straight into ACTIVE with its countdown
// running from the persisted resume point. Restoration never calls the
// generator. A corrupt session value is discarded and the state stays HOME.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.historyItems = c.history.Load(ctx)
	c.language = c.preferenceLanguage(ctx)

	session, err := c.sessions.Restore(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Session restore failed, starting at home")
		return
	}
	if session == nil {
		return
	}

	// The restored session's language wins over the preference hint.
	if session.Language.Valid() {
		c.language = session.Language
	}
	c.state = model.StateActive
	c.startReconcilerLocked(session.SecondsRemaining)

	c.log.Info().
		Str("subject", string(session.Subject)).
		Int("seconds_remaining", session.SecondsRemaining).
		Msg("Resumed persisted exam session")
}

// preferenceLanguage reads the UI preference key as a startup hint. The
// engine never writes this key.
func (c *Controller) preferenceLanguage(ctx context.Context) model.Language {
	data, err := c.gateway.Get(ctx, config.StorageKey.Preferences())
	if err != nil {
		return model.LanguageEnglish
	}
	var prefs struct {
		Language model.Language `json:"language"`
	}
	if json.Unmarshal(data, &prefs) == nil && prefs.Language.Valid() {
		return prefs.Language
	}
	return model.LanguageEnglish
}

// Start runs HOME → LOADING → ACTIVE (or back to HOME on failure). It calls
// the external generator synchronously; concurrent observers see LOADING for
// the duration. Only one exam may be live at a time: starting while LOADING,
// ACTIVE or RESULTS is rejected.
func (c *Controller) Start(ctx context.Context, examCfg model.ExamConfig) error {
	if !examCfg.Subject.Valid() || !examCfg.Language.Valid() || examCfg.QuestionCount <= 0 {
		return ErrInvalidConfig
	}

	c.mu.Lock()
	if c.state == model.StateLoading || c.state == model.StateActive {
		c.mu.Unlock()
		return ErrExamInProgress
	}
	if c.state != model.StateHome {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = model.StateLoading
	c.lastError = ""
	c.lastResult = nil
	c.language = examCfg.Language
	c.mu.Unlock()

	// Suspension point: the generator call happens outside the lock so
	// observers and the health surface stay responsive during generation.
	questions, err := c.generator.Generate(ctx, examCfg.Subject, examCfg.QuestionCount, examCfg.Language)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = model.StateHome
		c.lastError = err.Error()
		c.log.Warn().Err(err).Str("subject", string(examCfg.Subject)).Msg("Question generation failed")
		// Returned unwrapped: the generator's message is user-facing and
		// travels to the client as-is.
		return err
	}

	session := c.sessions.Create(ctx, questions, examCfg)
	c.state = model.StateActive
	c.startReconcilerLocked(session.SecondsRemaining)

	c.log.Info().
		Str("subject", string(examCfg.Subject)).
		Int("questions", len(questions)).
		Int("duration_seconds", session.DurationSeconds).
		Msg("Exam session started")
	return nil
}

// Answer records the selected option for a question. ACTIVE only.
func (c *Controller) Answer(ctx context.Context, questionID string, optionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateActive {
		return ErrNoActiveExam
	}
	return c.sessions.SetAnswer(ctx, questionID, optionIndex)
}

// ToggleFlag flips the review flag on a question. ACTIVE only.
func (c *Controller) ToggleFlag(ctx context.Context, questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateActive {
		return ErrNoActiveExam
	}
	return c.sessions.ToggleFlag(ctx, questionID)
}

// Submit finalizes the active session: score, history entry, persisted-slot
// cleanup, transition to RESULTS. The state transition happens under the
// mutex before anything else can observe an active session, so a concurrent
// second submit (user clicking finish while the zero-time auto-submit fires)
// finds no ACTIVE state and appends nothing.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != model.StateActive {
		c.mu.Unlock()
		return ErrNoActiveExam
	}

	r := c.reconciler
	c.reconciler = nil
	c.finalizeLocked(ctx)
	c.mu.Unlock()

	// Stop outside the lock: the cadence goroutine may be blocked in a
	// callback that needs it. The teardown flush is dropped by the
	// liveness guard since r is no longer current.
	if r != nil {
		r.Stop()
	}
	return nil
}

// finalizeLocked turns the active session into a history entry and moves the
// state machine to RESULTS. The session value stays in memory for the results
// view; the persisted slot is deleted and no longer a resume source.
func (c *Controller) finalizeLocked(ctx context.Context) {
	session := c.sessions.Session()
	result := scoring.Score(session)
	c.lastResult = &result

	item := model.ExamHistoryItem{
		ID:             fmt.Sprintf("exam-%s", uuid.New().String()),
		Date:           time.Now().UnixMilli(),
		Subject:        session.Subject,
		Score:          result.Percentage,
		TotalQuestions: result.Total,
		Passed:         result.Passed,
	}
	c.historyItems = c.history.Prepend(ctx, c.historyItems, item)

	c.sessions.ClearPersisted(ctx)
	c.state = model.StateResults

	c.log.Info().
		Str("subject", string(session.Subject)).
		Int("score", result.Percentage).
		Bool("passed", result.Passed).
		Msg("Exam submitted")
}

// Restart clears any residual session and returns to HOME. Not allowed while
// an exam is active or loading; submit or let the timer expire first.
func (c *Controller) Restart(ctx context.Context) error {
	return c.GoHome(ctx)
}

// GoHome returns to HOME from RESULTS or INFO, clearing the in-memory session
// and any residual persisted slot.
func (c *Controller) GoHome(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.StateActive || c.state == model.StateLoading {
		return ErrExamInProgress
	}

	c.sessions.Reset(ctx)
	c.lastResult = nil
	c.lastError = ""
	c.state = model.StateHome
	return nil
}

// GoInfo enters the INFO side-state from HOME. No session side effects.
func (c *Controller) GoInfo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateHome {
		return ErrInvalidState
	}
	c.state = model.StateInfo
	return nil
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]model.ExamHistoryItem, len(c.historyItems))
	copy(history, c.historyItems)

	return Snapshot{
		State:     c.state,
		Session:   c.sessions.Session().Clone(),
		History:   history,
		Language:  c.language,
		LastError: c.lastError,
		Result:    c.lastResult,
	}
}

// Shutdown cancels the countdown, flushing the freshest remaining time so the
// next process start resumes from it. The persisted session stays in place.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	r := c.reconciler
	c.mu.Unlock()

	if r == nil {
		return
	}
	// Keep r current during Stop so the teardown flush passes the liveness
	// guard and reaches the session store.
	r.Stop()

	c.mu.Lock()
	if c.reconciler == r {
		c.reconciler = nil
	}
	c.mu.Unlock()
}

// startReconcilerLocked launches the countdown for the current session.
// Callers hold c.mu.
func (c *Controller) startReconcilerLocked(initialRemaining int) {
	// The callbacks capture r so they can prove they belong to the cadence
	// that is still current; r is assigned before Start fires any of them.
	var r *timer.Reconciler
	r = timer.New(timer.Config{
		Interval:  c.tickInterval,
		Now:       c.now,
		Logger:    c.log,
		OnPersist: func(remaining int) { c.onTick(r, remaining) },
		OnExpire:  func() { c.onExpire(r) },
	})
	c.reconciler = r
	r.Start(initialRemaining)
}

// onTick persists a remaining-time checkpoint from the reconciler r. Dropped
// when r is no longer the current cadence or the session left ACTIVE.
func (c *Controller) onTick(r *timer.Reconciler, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconciler != r || c.state != model.StateActive {
		return
	}
	if err := c.sessions.SetRemaining(context.Background(), remaining); err != nil {
		c.log.Error().Err(err).Msg("Failed to record remaining time")
	}
}

// onExpire auto-submits when the countdown hits zero. The reconciler has
// already persisted the final zero and ended its cadence.
func (c *Controller) onExpire(r *timer.Reconciler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconciler != r || c.state != model.StateActive {
		return
	}
	c.reconciler = nil
	c.finalizeLocked(context.Background())
}
