package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/aeroprep/examd/internal/lifecycle"
	"github.com/aeroprep/examd/internal/model"
	"github.com/aeroprep/examd/internal/response"
	"github.com/aeroprep/examd/internal/scoring"
	"github.com/aeroprep/examd/internal/store"
	"github.com/aeroprep/examd/internal/validator"
)

// ExamHandler exposes the lifecycle controller to the presentation layer.
type ExamHandler struct {
	controller *lifecycle.Controller
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(controller *lifecycle.Controller) *ExamHandler {
	return &ExamHandler{controller: controller}
}

// sessionView is the wire shape of a session snapshot. The flag set becomes
// an ordered id list, matching the persisted representation.
type sessionView struct {
	Questions        []model.Question `json:"questions"`
	UserAnswers      map[string]int   `json:"user_answers"`
	FlaggedQuestions []string         `json:"flagged_questions"`
	StartTime        int64            `json:"start_time"`
	DurationSeconds  int              `json:"duration_seconds"`
	SecondsRemaining int              `json:"seconds_remaining"`
	Subject          model.Subject    `json:"subject"`
	Language         model.Language   `json:"language"`
}

type snapshotView struct {
	State     model.AppState          `json:"state"`
	Session   *sessionView            `json:"session"`
	History   []model.ExamHistoryItem `json:"history"`
	Language  model.Language          `json:"language"`
	LastError string                  `json:"last_error,omitempty"`
	Result    *scoring.Result         `json:"result,omitempty"`
}

func buildSnapshotView(snap lifecycle.Snapshot) snapshotView {
	view := snapshotView{
		State:     snap.State,
		History:   snap.History,
		Language:  snap.Language,
		LastError: snap.LastError,
		Result:    snap.Result,
	}
	if s := snap.Session; s != nil {
		flags := make([]string, 0, len(s.FlaggedQuestions))
		for id := range s.FlaggedQuestions {
			flags = append(flags, id)
		}
		sort.Strings(flags)

		view.Session = &sessionView{
			Questions:        s.Questions,
			UserAnswers:      s.UserAnswers,
			FlaggedQuestions: flags,
			StartTime:        s.StartTime,
			DurationSeconds:  s.DurationSeconds,
			SecondsRemaining: s.SecondsRemaining,
			Subject:          s.Subject,
			Language:         s.Language,
		}
	}
	return view
}

// GetState godoc
// GET /api/v1/exam
// Returns the full observable state: app state, session, history, last error.
func (h *ExamHandler) GetState(c *gin.Context) {
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// Start godoc
// POST /api/v1/exam/start
// Generates questions and opens a new timed session.
func (h *ExamHandler) Start(c *gin.Context) {
	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cfg := model.ExamConfig{
		Subject:       model.Subject(req.Subject),
		QuestionCount: req.QuestionCount,
		Language:      model.Language(req.Language),
	}

	if err := h.controller.Start(c.Request.Context(), cfg); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidConfig):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidConfig)
		case errors.Is(err, lifecycle.ErrExamInProgress), errors.Is(err, lifecycle.ErrInvalidState):
			response.Fail(c, http.StatusConflict, response.ErrExamInProgress)
		default:
			// Generation failure: the generator's message passes through.
			response.FailWithMessage(c, http.StatusBadGateway, response.ErrGeneration, err.Error())
		}
		return
	}

	response.Success(c, http.StatusCreated, buildSnapshotView(h.controller.Snapshot()))
}

// Answer godoc
// POST /api/v1/exam/answer
// Upserts the selected option for one question.
func (h *ExamHandler) Answer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.controller.Answer(c.Request.Context(), req.QuestionID, *req.OptionIndex); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// ToggleFlag godoc
// POST /api/v1/exam/flag
// Flips the review flag on one question.
func (h *ExamHandler) ToggleFlag(c *gin.Context) {
	var req model.FlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.controller.ToggleFlag(c.Request.Context(), req.QuestionID); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// Submit godoc
// POST /api/v1/exam/submit
// Finalizes the active session into a scored result and history entry.
func (h *ExamHandler) Submit(c *gin.Context) {
	if err := h.controller.Submit(c.Request.Context()); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// Restart godoc
// POST /api/v1/exam/restart
// Clears any residual session and returns to the home state.
func (h *ExamHandler) Restart(c *gin.Context) {
	if err := h.controller.Restart(c.Request.Context()); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// GoHome godoc
// POST /api/v1/exam/home
func (h *ExamHandler) GoHome(c *gin.Context) {
	if err := h.controller.GoHome(c.Request.Context()); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// GoInfo godoc
// POST /api/v1/exam/info
func (h *ExamHandler) GoInfo(c *gin.Context) {
	if err := h.controller.GoInfo(); err != nil {
		h.failMutation(c, err)
		return
	}
	response.Success(c, http.StatusOK, buildSnapshotView(h.controller.Snapshot()))
}

// GetHistory godoc
// GET /api/v1/history
// Returns completed exams, newest first.
func (h *ExamHandler) GetHistory(c *gin.Context) {
	snap := h.controller.Snapshot()
	response.Success(c, http.StatusOK, gin.H{"history": snap.History})
}

// failMutation maps engine errors onto API error codes.
func (h *ExamHandler) failMutation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNoActiveExam):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveExam)
	case errors.Is(err, lifecycle.ErrExamInProgress):
		response.Fail(c, http.StatusConflict, response.ErrExamInProgress)
	case errors.Is(err, lifecycle.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, store.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	case errors.Is(err, store.ErrOptionRange):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionRange)
	case errors.Is(err, store.ErrNoSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveExam)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
