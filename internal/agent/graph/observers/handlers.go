package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/chative-sales/server/internal/metrics"
)

// NewAllCallbacks aggregates the model and prompt loggers with the component
// timing handler. Attach them with compose.WithCallbacks(...).
func NewAllCallbacks() []einocb.Handler {
	typed := callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
	return []einocb.Handler{typed, newTimingHandler()}
}

type startKey struct{}

// newTimingHandler records the latency of every graph component.
func newTimingHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			observe(ctx, info, "ok")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, _ error) context.Context {
			observe(ctx, info, "error")
			return ctx
		}).
		Build()
}

func observe(ctx context.Context, info *einocb.RunInfo, status string) {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok || info == nil {
		return
	}
	metrics.NodeDuration.
		WithLabelValues(string(info.Component), info.Name, status).
		Observe(time.Since(start).Seconds())
}
