package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// PipelineState 一次生成请求在流水线中的状态
type PipelineState string

const (
	PipelineReceived   PipelineState = "received"   // 请求到达
	PipelineValidating PipelineState = "validating" // 校验 URL
	PipelinePackaging  PipelineState = "packaging"  // repomix 打包
	PipelinePrompting  PipelineState = "prompting"  // 组装提示词
	PipelineCompleting PipelineState = "completing" // 调用模型
	PipelineSanitizing PipelineState = "sanitizing" // 清洗输出
	PipelineDone       PipelineState = "done"       // 成功（终止态）
	PipelineFailed     PipelineState = "failed"     // 失败（终止态）
)

// PipelineTransition 定义流水线状态迁移
type PipelineTransition struct {
	From PipelineState
	To   PipelineState
}

// PipelineStateMachine 流水线状态机
// 只允许单向前进，任一非终止态都可以进入 failed
type PipelineStateMachine struct {
	allowedTransitions map[PipelineTransition]bool
}

// NewPipelineStateMachine 创建流水线状态机
func NewPipelineStateMachine() *PipelineStateMachine {
	sm := &PipelineStateMachine{
		allowedTransitions: make(map[PipelineTransition]bool),
	}

	// received -> validating -> packaging -> prompting -> completing -> sanitizing -> done
	forward := []PipelineState{
		PipelineReceived,
		PipelineValidating,
		PipelinePackaging,
		PipelinePrompting,
		PipelineCompleting,
		PipelineSanitizing,
		PipelineDone,
	}
	for i := 0; i+1 < len(forward); i++ {
		sm.allowedTransitions[PipelineTransition{forward[i], forward[i+1]}] = true
	}

	for _, s := range forward {
		if !IsPipelineTerminal(s) {
			sm.allowedTransitions[PipelineTransition{s, PipelineFailed}] = true
		}
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *PipelineStateMachine) CanTransition(from, to PipelineState) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[PipelineTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *PipelineStateMachine) ValidateTransition(from, to PipelineState) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *PipelineStateMachine) Transition(from, to PipelineState, requestID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("流水线状态迁移被拒绝: requestID=%s, %s -> %s, error=%v", requestID, from, to, err)
		return err
	}

	klog.V(6).Infof("流水线状态迁移: requestID=%s, %s -> %s", requestID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid pipeline state transition: %s -> %s", e.From, e.To)
}

// IsPipelineTerminal 判断是否为终止态
func IsPipelineTerminal(state PipelineState) bool {
	return state == PipelineDone || state == PipelineFailed
}
