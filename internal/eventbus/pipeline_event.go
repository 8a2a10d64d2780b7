package eventbus

import (
	"context"
	"time"

	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/service/statemachine"
)

type PipelineEventType string

const (
	PipelineEventStage  PipelineEventType = "pipeline.stage"  // 进入新阶段
	PipelineEventDone   PipelineEventType = "pipeline.done"   // 成功结束
	PipelineEventFailed PipelineEventType = "pipeline.failed" // 失败结束
)

type PipelineEvent struct {
	Type      PipelineEventType
	RequestID string
	Kind      domain.ArtifactKind
	RepoURL   string
	From      statemachine.PipelineState
	To        statemachine.PipelineState
	Elapsed   time.Duration // 上一阶段耗时；done/failed 时为总耗时
	Err       error
}

type PipelineEventHandler = Handler[PipelineEvent]
type PipelineEventBus = Bus[PipelineEventType, PipelineEvent]

func NewPipelineEventBus() *PipelineEventBus {
	return NewBus[PipelineEventType, PipelineEvent]()
}

// PublishEvent 按事件自身的类型发布
func PublishEvent(ctx context.Context, bus *PipelineEventBus, event PipelineEvent) error {
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, event.Type, event)
}
