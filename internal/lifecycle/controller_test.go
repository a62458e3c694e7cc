package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aeroprep/examd/internal/config"
	"github.com/aeroprep/examd/internal/lifecycle"
	"github.com/aeroprep/examd/internal/model"
	"github.com/aeroprep/examd/internal/storage"
	"github.com/aeroprep/examd/internal/store"
)

type stubGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, subject model.Subject, count int, language model.Language) ([]model.Question, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}

	questions := make([]model.Question, count)
	for i := range questions {
		questions[i] = model.Question{
			ID:                 fmt.Sprintf("q-%d", i),
			Text:               fmt.Sprintf("question %d", i),
			Options:            []string{"a", "b", "c", "d"},
			CorrectOptionIndex: 1,
			Topic:              "Altimetry",
		}
	}
	return questions, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	controller *lifecycle.Controller
	gateway    *storage.RedisGateway
	mr         *miniredis.Miniredis
	gen        *stubGenerator
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gen := &stubGenerator{}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	gateway := storage.NewRedisGateway(rdb)

	controller := lifecycle.New(lifecycle.Config{
		Gateway:      gateway,
		Generator:    gen,
		Logger:       zerolog.Nop(),
		TickInterval: time.Millisecond,
		Now:          clock.Now,
	})
	t.Cleanup(controller.Shutdown)

	return &fixture{controller: controller, gateway: gateway, mr: mr, gen: gen, clock: clock}
}

func startExam(t *testing.T, f *fixture, count int) {
	t.Helper()
	err := f.controller.Start(context.Background(), model.ExamConfig{
		Subject:       model.SubjectAirLaw,
		QuestionCount: count,
		Language:      model.LanguageEnglish,
	})
	require.NoError(t, err)
}

func TestController_StartCreatesActiveSession(t *testing.T) {
	f := makeFixture(t)
	f.controller.Bootstrap(context.Background())

	startExam(t, f, 10)

	snap := f.controller.Snapshot()
	require.Equal(t, model.StateActive, snap.State)
	require.NotNil(t, snap.Session)
	require.Len(t, snap.Session.Questions, 10)
	require.Equal(t, 900, snap.Session.DurationSeconds)
	require.Equal(t, 900, snap.Session.SecondsRemaining)
	require.Empty(t, snap.Session.UserAnswers)
	require.True(t, f.mr.Exists(config.StorageKey.ActiveSession()))
}

func TestController_StartRejectsInvalidConfig(t *testing.T) {
	f := makeFixture(t)

	err := f.controller.Start(context.Background(), model.ExamConfig{
		Subject:       "Underwater Basket Weaving",
		QuestionCount: 10,
		Language:      model.LanguageEnglish,
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidConfig)

	err = f.controller.Start(context.Background(), model.ExamConfig{
		Subject:       model.SubjectAirLaw,
		QuestionCount: 0,
		Language:      model.LanguageEnglish,
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidConfig)
}

func TestController_GenerationFailureReturnsHome(t *testing.T) {
	f := makeFixture(t)
	f.gen.err = errors.New("AI service is temporarily unavailable, please try again later")

	err := f.controller.Start(context.Background(), model.ExamConfig{
		Subject:       model.SubjectMeteorology,
		QuestionCount: 5,
		Language:      model.LanguageEnglish,
	})
	require.Error(t, err)

	snap := f.controller.Snapshot()
	require.Equal(t, model.StateHome, snap.State)
	require.Nil(t, snap.Session)
	require.Contains(t, snap.LastError, "temporarily unavailable")
	require.False(t, f.mr.Exists(config.StorageKey.ActiveSession()), "no partial session may be persisted")
}

func TestController_StartWhileActiveRejected(t *testing.T) {
	f := makeFixture(t)
	startExam(t, f, 5)

	err := f.controller.Start(context.Background(), model.ExamConfig{
		Subject:       model.SubjectAirLaw,
		QuestionCount: 5,
		Language:      model.LanguageEnglish,
	})
	require.ErrorIs(t, err, lifecycle.ErrExamInProgress)
	require.Equal(t, 1, f.gen.callCount(), "second start must not reach the generator")
}

func TestController_MutationsRequireActiveState(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.controller.Answer(ctx, "q-0", 1), lifecycle.ErrNoActiveExam)
	require.ErrorIs(t, f.controller.ToggleFlag(ctx, "q-0"), lifecycle.ErrNoActiveExam)
	require.ErrorIs(t, f.controller.Submit(ctx), lifecycle.ErrNoActiveExam)
}

func TestController_AnswerAndFlagMutateSession(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	startExam(t, f, 5)

	require.NoError(t, f.controller.Answer(ctx, "q-0", 1))
	require.NoError(t, f.controller.Answer(ctx, "q-0", 3)) // overwrite
	require.NoError(t, f.controller.ToggleFlag(ctx, "q-2"))

	snap := f.controller.Snapshot()
	require.Equal(t, map[string]int{"q-0": 3}, snap.Session.UserAnswers)
	require.True(t, snap.Session.Flagged("q-2"))

	require.ErrorIs(t, f.controller.Answer(ctx, "ghost", 0), store.ErrUnknownQuestion)
}

func TestController_SubmitScoresAndTransitions(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 4)

	// q-0 correct, q-1 wrong, q-2 unanswered, q-3 correct.
	require.NoError(t, f.controller.Answer(ctx, "q-0", 1))
	require.NoError(t, f.controller.Answer(ctx, "q-1", 0))
	require.NoError(t, f.controller.Answer(ctx, "q-3", 1))

	require.NoError(t, f.controller.Submit(ctx))

	snap := f.controller.Snapshot()
	require.Equal(t, model.StateResults, snap.State)
	require.NotNil(t, snap.Session, "session stays in memory for the results view")
	require.NotNil(t, snap.Result)
	require.Equal(t, 2, snap.Result.Correct)
	require.Equal(t, 50, snap.Result.Percentage)
	require.False(t, snap.Result.Passed)

	require.Len(t, snap.History, 1)
	require.Equal(t, 50, snap.History[0].Score)
	require.Equal(t, 4, snap.History[0].TotalQuestions)

	require.False(t, f.mr.Exists(config.StorageKey.ActiveSession()), "active slot deleted at submission")
	require.True(t, f.mr.Exists(config.StorageKey.History()))
}

func TestController_DoubleSubmitAppendsOneHistoryEntry(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5)

	errFirst := f.controller.Submit(ctx)
	errSecond := f.controller.Submit(ctx)

	require.NoError(t, errFirst)
	require.ErrorIs(t, errSecond, lifecycle.ErrNoActiveExam)
	require.Len(t, f.controller.Snapshot().History, 1)
}

func TestController_ConcurrentSubmitAppendsOneHistoryEntry(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.controller.Submit(ctx)
		}(i)
	}
	wg.Wait()

	// Exactly one submit wins, the other observes no active exam.
	require.True(t, (errs[0] == nil) != (errs[1] == nil))
	require.Len(t, f.controller.Snapshot().History, 1)
}

func TestController_ExpiryAutoSubmitsOnce(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5) // 300 seconds

	f.clock.Advance(301 * time.Second)

	require.Eventually(t, func() bool {
		return f.controller.Snapshot().State == model.StateResults
	}, time.Second, 2*time.Millisecond)

	require.ErrorIs(t, f.controller.Submit(ctx), lifecycle.ErrNoActiveExam)

	snap := f.controller.Snapshot()
	require.Len(t, snap.History, 1)
	require.Equal(t, 0, snap.Result.Percentage, "nothing answered before expiry")
}

func TestController_BootstrapRestoresPersistedSession(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	// First process run: start, answer, let a checkpoint land, "crash".
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5)
	require.NoError(t, f.controller.Answer(ctx, "q-1", 2))
	f.controller.Shutdown()

	// Second process run against the same storage.
	restarted := lifecycle.New(lifecycle.Config{
		Gateway:      f.gateway,
		Generator:    f.gen,
		Logger:       zerolog.Nop(),
		TickInterval: time.Millisecond,
		Now:          f.clock.Now,
	})
	t.Cleanup(restarted.Shutdown)
	restarted.Bootstrap(ctx)

	snap := restarted.Snapshot()
	require.Equal(t, model.StateActive, snap.State)
	require.Equal(t, map[string]int{"q-1": 2}, snap.Session.UserAnswers)
	require.Equal(t, 1, f.gen.callCount(), "restoration never calls the generator")
}

func TestController_BootstrapRestoredLanguageOverridesPreference(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.gateway.Set(ctx, config.StorageKey.Preferences(), []byte(`{"language":"fr","theme":"slate"}`)))

	f.controller.Bootstrap(ctx)
	require.Equal(t, model.LanguageFrench, f.controller.Snapshot().Language)

	// A restored German session wins over the French preference hint.
	err := f.controller.Start(ctx, model.ExamConfig{
		Subject:       model.SubjectNavigation,
		QuestionCount: 5,
		Language:      model.LanguageGerman,
	})
	require.NoError(t, err)
	f.controller.Shutdown()

	restarted := lifecycle.New(lifecycle.Config{
		Gateway:      f.gateway,
		Generator:    f.gen,
		Logger:       zerolog.Nop(),
		TickInterval: time.Millisecond,
		Now:          f.clock.Now,
	})
	t.Cleanup(restarted.Shutdown)
	restarted.Bootstrap(ctx)

	require.Equal(t, model.LanguageGerman, restarted.Snapshot().Language)
}

func TestController_BootstrapCorruptSessionStaysHome(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.gateway.Set(ctx, config.StorageKey.ActiveSession(), []byte(`{"user_answers":{}}`)))

	f.controller.Bootstrap(ctx)

	snap := f.controller.Snapshot()
	require.Equal(t, model.StateHome, snap.State)
	require.Nil(t, snap.Session)
	require.False(t, f.mr.Exists(config.StorageKey.ActiveSession()), "corrupt key must be cleared")
}

func TestController_RestartClearsSession(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5)

	require.ErrorIs(t, f.controller.Restart(ctx), lifecycle.ErrExamInProgress)

	require.NoError(t, f.controller.Submit(ctx))
	require.NoError(t, f.controller.Restart(ctx))

	snap := f.controller.Snapshot()
	require.Equal(t, model.StateHome, snap.State)
	require.Nil(t, snap.Session)
	require.Nil(t, snap.Result)
	require.False(t, f.mr.Exists(config.StorageKey.ActiveSession()))
}

func TestController_InfoSideState(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.controller.GoInfo())
	require.Equal(t, model.StateInfo, f.controller.Snapshot().State)

	require.ErrorIs(t, f.controller.GoInfo(), lifecycle.ErrInvalidState)

	require.NoError(t, f.controller.GoHome(ctx))
	require.Equal(t, model.StateHome, f.controller.Snapshot().State)
}

func TestController_HistoryNewestFirstAcrossRuns(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)

	subjects := []model.Subject{model.SubjectAirLaw, model.SubjectNavigation, model.SubjectMeteorology}
	for _, subject := range subjects {
		err := f.controller.Start(ctx, model.ExamConfig{
			Subject:       subject,
			QuestionCount: 5,
			Language:      model.LanguageEnglish,
		})
		require.NoError(t, err)
		require.NoError(t, f.controller.Submit(ctx))
		require.NoError(t, f.controller.Restart(ctx))
	}

	history := f.controller.Snapshot().History
	require.Len(t, history, 3)
	require.Equal(t, model.SubjectMeteorology, history[0].Subject)
	require.Equal(t, model.SubjectNavigation, history[1].Subject)
	require.Equal(t, model.SubjectAirLaw, history[2].Subject)
}

func TestController_ShutdownFlushesFreshRemaining(t *testing.T) {
	f := makeFixture(t)
	ctx := context.Background()
	f.controller.Bootstrap(ctx)
	startExam(t, f, 5) // 300 seconds

	f.clock.Advance(13 * time.Second)
	f.controller.Shutdown()

	restarted := lifecycle.New(lifecycle.Config{
		Gateway:      f.gateway,
		Generator:    f.gen,
		Logger:       zerolog.Nop(),
		TickInterval: time.Hour, // effectively frozen cadence
		Now:          f.clock.Now,
	})
	t.Cleanup(restarted.Shutdown)
	restarted.Bootstrap(ctx)

	require.Equal(t, 287, restarted.Snapshot().Session.SecondsRemaining)
}
