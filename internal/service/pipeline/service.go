package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/eventbus"
	"github.com/repomaster/backend/internal/metrics"
	"github.com/repomaster/backend/internal/pkg/git"
	"github.com/repomaster/backend/internal/pkg/packager"
	"github.com/repomaster/backend/internal/service/prompt"
	"github.com/repomaster/backend/internal/service/statemachine"
)

// Packager 将远程仓库打包为单个文本文件
type Packager interface {
	Package(ctx context.Context, ref git.Reference) (*packager.Codebase, error)
}

// Assembler 按产物类型组装提示词
type Assembler interface {
	Assemble(ctx context.Context, req domain.ArtifactRequest) ([]*schema.Message, error)
}

// Completer 单次模型补全
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// Request 一次生成请求
type Request struct {
	ID   string
	Kind domain.ArtifactKind
	URL  string
}

// Service 请求到产物的流水线
// 每个请求只走一遍：validating -> packaging -> prompting -> completing -> sanitizing
type Service struct {
	packager  Packager
	assembler Assembler
	completer Completer
	budget    prompt.Budget
	sm        *statemachine.PipelineStateMachine
	bus       *eventbus.PipelineEventBus
}

func NewService(p Packager, a Assembler, c Completer, budget prompt.Budget, bus *eventbus.PipelineEventBus) *Service {
	return &Service{
		packager:  p,
		assembler: a,
		completer: c,
		budget:    budget,
		sm:        statemachine.NewPipelineStateMachine(),
		bus:       bus,
	}
}

// Generate 执行一次完整的生成流程
// 返回的错误都包装了 domain 中的哨兵错误，由 handler 映射为 HTTP 状态码
func (s *Service) Generate(ctx context.Context, req Request) (*domain.Artifact, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	r := &run{
		service:    s,
		req:        req,
		state:      statemachine.PipelineReceived,
		startedAt:  time.Now(),
		stageStart: time.Now(),
	}

	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	klog.V(6).Infof("[Pipeline] 开始: requestID=%s, kind=%s, url=%s", req.ID, req.Kind, req.URL)

	if !slices.Contains(domain.ArtifactKinds(), req.Kind) {
		return nil, r.fail(ctx, fmt.Errorf("%w: %q", domain.ErrUnknownArtifactKind, req.Kind))
	}

	r.advance(ctx, statemachine.PipelineValidating)
	ref, err := git.Validate(req.URL)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	if owner, repo, err := git.ParseRepoName(ref); err == nil {
		klog.V(6).Infof("[Pipeline] 仓库: requestID=%s, owner=%s, repo=%s", req.ID, owner, repo)
	}

	r.advance(ctx, statemachine.PipelinePackaging)
	codebase, err := s.packager.Package(ctx, ref)
	if err != nil {
		return nil, r.fail(ctx, wrapStageError(domain.ErrPackagingFailed, err))
	}
	defer codebase.Close()

	text, err := codebase.Read()
	if err != nil {
		return nil, r.fail(ctx, wrapStageError(domain.ErrPackagingFailed, err))
	}

	r.advance(ctx, statemachine.PipelinePrompting)
	text, err = s.budget.Fit(text)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	messages, err := s.assembler.Assemble(ctx, domain.ArtifactRequest{Kind: req.Kind, Codebase: text})
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	r.advance(ctx, statemachine.PipelineCompleting)
	raw, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, r.fail(ctx, wrapStageError(domain.ErrCompletionFailed, err))
	}

	r.advance(ctx, statemachine.PipelineSanitizing)
	content := Sanitize(req.Kind, raw)

	r.finish(ctx)
	return &domain.Artifact{
		Kind:      req.Kind,
		Content:   content,
		RequestID: req.ID,
	}, nil
}

// wrapStageError 保证阶段错误可以用 errors.Is 归类
func wrapStageError(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

// run 单次请求的执行状态，不跨请求共享
type run struct {
	service    *Service
	req        Request
	state      statemachine.PipelineState
	startedAt  time.Time
	stageStart time.Time
}

func (r *run) transition(to statemachine.PipelineState) (statemachine.PipelineState, time.Duration) {
	from := r.state
	if err := r.service.sm.Transition(from, to, r.req.ID); err != nil {
		klog.Errorf("[Pipeline] 非法状态迁移: requestID=%s, err=%v", r.req.ID, err)
	}
	elapsed := time.Since(r.stageStart)
	r.state = to
	r.stageStart = time.Now()
	return from, elapsed
}

func (r *run) advance(ctx context.Context, to statemachine.PipelineState) {
	from, elapsed := r.transition(to)
	r.publish(ctx, eventbus.PipelineEvent{
		Type:    eventbus.PipelineEventStage,
		From:    from,
		To:      to,
		Elapsed: elapsed,
	})
}

func (r *run) fail(ctx context.Context, err error) error {
	from, _ := r.transition(statemachine.PipelineFailed)
	klog.Errorf("[Pipeline] 失败: requestID=%s, stage=%s, kind=%s, url=%s, err=%v", r.req.ID, from, r.req.Kind, r.req.URL, err)
	r.publish(ctx, eventbus.PipelineEvent{
		Type:    eventbus.PipelineEventFailed,
		From:    from,
		To:      statemachine.PipelineFailed,
		Elapsed: time.Since(r.startedAt),
		Err:     err,
	})
	return err
}

func (r *run) finish(ctx context.Context) {
	from, stageElapsed := r.transition(statemachine.PipelineDone)
	metrics.ObserveStageDuration(string(from), stageElapsed)
	total := time.Since(r.startedAt)
	klog.V(6).Infof("[Pipeline] 完成: requestID=%s, kind=%s, 耗时=%v", r.req.ID, r.req.Kind, total)
	r.publish(ctx, eventbus.PipelineEvent{
		Type:    eventbus.PipelineEventDone,
		From:    from,
		To:      statemachine.PipelineDone,
		Elapsed: total,
	})
}

func (r *run) publish(ctx context.Context, event eventbus.PipelineEvent) {
	event.RequestID = r.req.ID
	event.Kind = r.req.Kind
	event.RepoURL = r.req.URL
	if err := eventbus.PublishEvent(ctx, r.service.bus, event); err != nil {
		klog.Warningf("[Pipeline] 事件处理失败: requestID=%s, type=%s, err=%v", r.req.ID, event.Type, err)
	}
}
