package prompt

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/internal/domain"
)

// CodebaseVar 模板中代码库内容的占位符名
const CodebaseVar = "codebase"

// Assembler 按产物类型选择模板并填入代码库文本
type Assembler struct {
	templates map[domain.ArtifactKind]prompt.ChatTemplate
}

// NewAssembler 注册固定的 产物类型 -> 模板 映射
func NewAssembler() *Assembler {
	return &Assembler{
		templates: map[domain.ArtifactKind]prompt.ChatTemplate{
			domain.ArtifactReadme:        newTemplate(readmeTemplate),
			domain.ArtifactDockerfile:    newTemplate(dockerfileTemplate),
			domain.ArtifactDockerCompose: newTemplate(dockerComposeTemplate),
		},
	}
}

func newTemplate(userTemplate string) prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userTemplate),
	)
}

// Assemble 生成一次补全请求的消息列表，代码库文本原样填入
func (a *Assembler) Assemble(ctx context.Context, req domain.ArtifactRequest) ([]*schema.Message, error) {
	tpl, ok := a.templates[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownArtifactKind, req.Kind)
	}

	messages, err := tpl.Format(ctx, map[string]any{CodebaseVar: req.Codebase})
	if err != nil {
		klog.Errorf("[Prompt] 模板渲染失败: kind=%s, err=%v", req.Kind, err)
		return nil, fmt.Errorf("format %s prompt: %w", req.Kind, err)
	}

	klog.V(6).Infof("[Prompt] 组装完成: kind=%s, messages=%d, codebaseLength=%d", req.Kind, len(messages), len(req.Codebase))
	return messages, nil
}
