package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	"github.com/chative-sales/server/internal/metrics"
	"github.com/chative-sales/server/internal/worker"
	logx "github.com/chative-sales/server/pkg/logger"
)

const healthTimeout = 800 * time.Millisecond

type TurnProcessor interface {
	Answer(ctx context.Context, in model.QueryInput) (*model.ComposedReply, error)
	Job(in model.QueryInput) func(ctx context.Context) error
}

type Submitter interface {
	Submit(key string, t worker.Task) error
}

type HistoryReader interface {
	History(ctx context.Context, conversationID string) ([]model.Utterance, error)
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

type Handler struct {
	turns   TurnProcessor
	queue   Submitter
	history HistoryReader
	checks  map[string]HealthCheck
	started time.Time
}

func NewHandler(turns TurnProcessor, queue Submitter, history HistoryReader, checks map[string]HealthCheck) *Handler {
	return &Handler{
		turns:   turns,
		queue:   queue,
		history: history,
		checks:  checks,
		started: time.Now(),
	}
}

type askRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
}

type askResponse struct {
	Answer    string              `json:"answer"`
	Question  string              `json:"question"`
	OrderInfo *model.OrderSummary `json:"order_info"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) bind(c echo.Context) (model.QueryInput, error) {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return model.QueryInput{}, errors.New("invalid json body")
	}
	in := model.QueryInput{
		ConversationID: strings.TrimSpace(req.ConversationID),
		Query:          strings.TrimSpace(req.Query),
	}
	if in.ConversationID == "" {
		return in, errors.New("conversation_id is required")
	}
	if in.Query == "" {
		return in, errors.New("query is required")
	}
	return in, nil
}

// Ask queues the turn and acknowledges immediately. The reply goes out
// through the deliverer.
func (h *Handler) Ask(c echo.Context) error {
	in, err := h.bind(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if err := h.queue.Submit(in.ConversationID, h.turns.Job(in)); err != nil {
		logx.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("turn rejected")
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrClosed) {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "server busy, retry later"})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: errx.SystemErrorMessage})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// AskSync runs the turn inline and returns the reply. A silent turn answers
// 204.
func (h *Handler) AskSync(c echo.Context) error {
	in, err := h.bind(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	reply, err := h.turns.Answer(c.Request().Context(), in)
	if err != nil {
		return c.JSON(errx.StatusOf(err), errorResponse{Error: publicMessage(err)})
	}
	if reply == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, askResponse{
		Answer:    reply.AnswerText,
		Question:  reply.FollowUpQuestion,
		OrderInfo: reply.OrderSummary,
	})
}

type utteranceView struct {
	Sequence uint         `json:"sequence"`
	Source   model.Source `json:"source"`
	Content  string       `json:"content"`
}

func (h *Handler) Conversation(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "conversation id is required"})
	}
	ctx := c.Request().Context()

	count, err := h.history.MessageCount(ctx, id)
	if err != nil {
		return c.JSON(errx.StatusOf(err), errorResponse{Error: publicMessage(err)})
	}
	if count == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "conversation not found"})
	}

	utterances, err := h.history.History(ctx, id)
	if err != nil {
		return c.JSON(errx.StatusOf(err), errorResponse{Error: publicMessage(err)})
	}
	messages := make([]utteranceView, 0, len(utterances))
	for _, u := range utterances {
		messages = append(messages, utteranceView{Sequence: u.Sequence, Source: u.Source, Content: u.Content})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": id,
		"count":           count,
		"messages":        messages,
	})
}

type checkResult struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	allOK := true
	results := make(map[string]checkResult, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			allOK = false
			results[name] = checkResult{Err: err.Error()}
			continue
		}
		results[name] = checkResult{OK: true}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"ok":         allOK,
		"uptime_sec": int(time.Since(h.started).Seconds()),
		"checks":     results,
	})
}

func publicMessage(err error) string {
	var app *errx.AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return errx.SystemErrorMessage
}
