package subscriber

import (
	"context"
	"errors"

	"k8s.io/klog/v2"

	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/eventbus"
	"github.com/repomaster/backend/internal/metrics"
)

// PipelineEventSubscriber 将流水线事件记录为 Prometheus 指标
type PipelineEventSubscriber struct{}

func NewPipelineEventSubscriber() *PipelineEventSubscriber {
	return &PipelineEventSubscriber{}
}

func (s *PipelineEventSubscriber) Register(bus *eventbus.PipelineEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.PipelineEventStage, s.handleStage)
	bus.Subscribe(eventbus.PipelineEventDone, s.handleDone)
	bus.Subscribe(eventbus.PipelineEventFailed, s.handleFailed)
}

func (s *PipelineEventSubscriber) handleStage(ctx context.Context, event eventbus.PipelineEvent) error {
	metrics.IncPipelineTransition(string(event.From), string(event.To))
	metrics.ObserveStageDuration(string(event.From), event.Elapsed)
	return nil
}

func (s *PipelineEventSubscriber) handleDone(ctx context.Context, event eventbus.PipelineEvent) error {
	metrics.IncPipelineTransition(string(event.From), string(event.To))
	metrics.IncPipelineRun(string(event.Kind), "done")
	metrics.ObserveStageDuration("total", event.Elapsed)
	return nil
}

func (s *PipelineEventSubscriber) handleFailed(ctx context.Context, event eventbus.PipelineEvent) error {
	outcome := Outcome(event.Err)
	metrics.IncPipelineTransition(string(event.From), string(event.To))
	metrics.IncPipelineRun(string(event.Kind), outcome)
	metrics.IncError("pipeline", outcome)
	klog.V(6).Infof("[Pipeline] 失败事件: requestID=%s, stage=%s, outcome=%s", event.RequestID, event.From, outcome)
	return nil
}

// Outcome 将错误归类为指标标签
func Outcome(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, domain.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, domain.ErrPackagingFailed):
		return "packaging_failed"
	case errors.Is(err, domain.ErrCodebaseTooLarge):
		return "too_large"
	case errors.Is(err, domain.ErrCompletionFailed):
		return "completion_failed"
	default:
		return "error"
	}
}
