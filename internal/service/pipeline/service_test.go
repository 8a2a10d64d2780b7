package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/eventbus"
	"github.com/repomaster/backend/internal/pkg/git"
	"github.com/repomaster/backend/internal/pkg/packager"
	"github.com/repomaster/backend/internal/service/prompt"
	"github.com/repomaster/backend/internal/service/statemachine"
)

type mockPackager struct {
	PackageFunc func(ctx context.Context, ref git.Reference) (*packager.Codebase, error)
	calls       []git.Reference
}

func (m *mockPackager) Package(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
	m.calls = append(m.calls, ref)
	return m.PackageFunc(ctx, ref)
}

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, messages []*schema.Message) (string, error)
	calls        int
	lastMessages []*schema.Message
}

func (m *mockCompleter) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	m.calls++
	m.lastMessages = messages
	return m.CompleteFunc(ctx, messages)
}

// packedCodebase 在临时目录里放一个打包结果
func packedCodebase(t *testing.T, content string) func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
	t.Helper()
	return func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
		dir, err := os.MkdirTemp(t.TempDir(), "repomix-")
		require.NoError(t, err)
		path := filepath.Join(dir, "packed_codebase.txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return &packager.Codebase{Ref: ref, Dir: dir, Path: path, Size: int64(len(content))}, nil
	}
}

func replyWith(text string) func(ctx context.Context, messages []*schema.Message) (string, error) {
	return func(ctx context.Context, messages []*schema.Message) (string, error) {
		return text, nil
	}
}

func newTestService(p Packager, c Completer, budget prompt.Budget, bus *eventbus.PipelineEventBus) *Service {
	return NewService(p, prompt.NewAssembler(), c, budget, bus)
}

func TestGenerateReadme(t *testing.T) {
	var packed *packager.Codebase
	pack := packedCodebase(t, "File: main.go\npackage main\n")
	p := &mockPackager{PackageFunc: func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
		cb, err := pack(ctx, ref)
		packed = cb
		return cb, err
	}}
	c := &mockCompleter{CompleteFunc: replyWith("```markdown\n# Title\n```")}

	artifact, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		ID:   "req-1",
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	require.NoError(t, err)

	assert.Equal(t, "# Title", artifact.Content)
	assert.Equal(t, domain.ArtifactReadme, artifact.Kind)
	assert.Equal(t, "req-1", artifact.RequestID)
	assert.Equal(t, 1, c.calls)
	require.Len(t, c.lastMessages, 2)
	assert.Contains(t, c.lastMessages[1].Content, "File: main.go\npackage main\n")

	_, statErr := os.Stat(filepath.Dir(packed.Path))
	assert.True(t, os.IsNotExist(statErr), "请求结束后临时目录应被删除")
}

func TestGenerateTrailingSlashEquivalent(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
	c := &mockCompleter{CompleteFunc: replyWith("FROM scratch")}
	svc := newTestService(p, c, prompt.Budget{}, nil)

	_, err := svc.Generate(context.Background(), Request{Kind: domain.ArtifactDockerfile, URL: "https://github.com/octocat/Hello-World"})
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), Request{Kind: domain.ArtifactDockerfile, URL: "https://github.com/octocat/Hello-World/"})
	require.NoError(t, err)

	require.Len(t, p.calls, 2)
	assert.Equal(t, p.calls[0], p.calls[1])
	assert.Equal(t, git.Reference("https://github.com/octocat/Hello-World"), p.calls[1])
}

func TestGenerateInvalidURL(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
	c := &mockCompleter{CompleteFunc: replyWith("x")}

	artifact, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "not-a-url",
	})
	assert.Nil(t, artifact)
	assert.True(t, errors.Is(err, domain.ErrInvalidReference))
	assert.Empty(t, p.calls, "URL 非法时不应调用打包工具")
	assert.Zero(t, c.calls)
}

func TestGeneratePackagingFailureSkipsCompletion(t *testing.T) {
	p := &mockPackager{PackageFunc: func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
		return nil, errors.New("repomix exited with status 1: fatal: repository not found")
	}}
	c := &mockCompleter{CompleteFunc: replyWith("x")}

	_, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPackagingFailed))
	assert.Contains(t, err.Error(), "fatal: repository not found")
	assert.Zero(t, c.calls, "打包失败时不应调用模型")
}

func TestGenerateUnreadableCodebase(t *testing.T) {
	p := &mockPackager{PackageFunc: func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
		dir := t.TempDir()
		return &packager.Codebase{Ref: ref, Dir: dir, Path: filepath.Join(dir, "missing.txt")}, nil
	}}
	c := &mockCompleter{CompleteFunc: replyWith("x")}

	_, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	assert.True(t, errors.Is(err, domain.ErrPackagingFailed))
	assert.Zero(t, c.calls)
}

func TestGenerateCompletionFailure(t *testing.T) {
	var packed *packager.Codebase
	pack := packedCodebase(t, "code")
	p := &mockPackager{PackageFunc: func(ctx context.Context, ref git.Reference) (*packager.Codebase, error) {
		cb, err := pack(ctx, ref)
		packed = cb
		return cb, err
	}}
	c := &mockCompleter{CompleteFunc: func(ctx context.Context, messages []*schema.Message) (string, error) {
		return "", errors.New("401 API key not valid")
	}}

	_, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactDockerCompose,
		URL:  "https://github.com/octocat/Hello-World",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCompletionFailed))
	assert.Contains(t, err.Error(), "401 API key not valid")

	_, statErr := os.Stat(filepath.Dir(packed.Path))
	assert.True(t, os.IsNotExist(statErr), "失败时临时目录同样应被删除")
}

func TestGenerateRejectsOversizedCodebase(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, strings.Repeat("x", 64))}
	c := &mockCompleter{CompleteFunc: replyWith("x")}

	_, err := newTestService(p, c, prompt.Budget{MaxBytes: 32, Policy: prompt.OverflowReject}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	assert.True(t, errors.Is(err, domain.ErrCodebaseTooLarge))
	assert.Zero(t, c.calls)
}

func TestGenerateTruncatesOversizedCodebase(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, strings.Repeat("x", 64))}
	c := &mockCompleter{CompleteFunc: replyWith("# ok")}

	_, err := newTestService(p, c, prompt.Budget{MaxBytes: 32, Policy: prompt.OverflowTruncate}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	require.NoError(t, err)
	require.Len(t, c.lastMessages, 2)
	assert.NotContains(t, c.lastMessages[1].Content, strings.Repeat("x", 33))
	assert.Contains(t, c.lastMessages[1].Content, "truncated")
}

func TestGenerateSanitizesEveryKind(t *testing.T) {
	cases := map[domain.ArtifactKind]struct {
		reply string
		want  string
	}{
		domain.ArtifactReadme:        {"```markdown\n# Title\n```", "# Title"},
		domain.ArtifactDockerfile:    {"```dockerfile\nFROM golang:1.24\n```", "FROM golang:1.24"},
		domain.ArtifactDockerCompose: {"```yaml\nservices:\n  app:\n    build: .\n```\n", "services:\n  app:\n    build: ."},
	}

	for kind, tc := range cases {
		p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
		c := &mockCompleter{CompleteFunc: replyWith(tc.reply)}
		artifact, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
			Kind: kind,
			URL:  "https://github.com/octocat/Hello-World",
		})
		require.NoError(t, err, kind)
		assert.Equal(t, tc.want, artifact.Content, kind)
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
	c := &mockCompleter{CompleteFunc: replyWith("x")}

	_, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: "helm-chart",
		URL:  "https://github.com/octocat/Hello-World",
	})
	assert.True(t, errors.Is(err, domain.ErrUnknownArtifactKind))
	assert.Empty(t, p.calls)
}

func TestGeneratePublishesStateTransitions(t *testing.T) {
	bus := eventbus.NewPipelineEventBus()
	var stages []statemachine.PipelineState
	var terminal []eventbus.PipelineEvent
	record := func(ctx context.Context, event eventbus.PipelineEvent) error {
		if event.Type == eventbus.PipelineEventStage {
			stages = append(stages, event.To)
		} else {
			terminal = append(terminal, event)
		}
		return nil
	}
	bus.Subscribe(eventbus.PipelineEventStage, record)
	bus.Subscribe(eventbus.PipelineEventDone, record)
	bus.Subscribe(eventbus.PipelineEventFailed, record)

	p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
	c := &mockCompleter{CompleteFunc: replyWith("# ok")}
	svc := newTestService(p, c, prompt.Budget{}, bus)

	_, err := svc.Generate(context.Background(), Request{ID: "req-ok", Kind: domain.ArtifactReadme, URL: "https://github.com/octocat/Hello-World"})
	require.NoError(t, err)

	assert.Equal(t, []statemachine.PipelineState{
		statemachine.PipelineValidating,
		statemachine.PipelinePackaging,
		statemachine.PipelinePrompting,
		statemachine.PipelineCompleting,
		statemachine.PipelineSanitizing,
	}, stages)
	require.Len(t, terminal, 1)
	assert.Equal(t, eventbus.PipelineEventDone, terminal[0].Type)
	assert.Equal(t, statemachine.PipelineSanitizing, terminal[0].From)
	assert.Equal(t, "req-ok", terminal[0].RequestID)

	stages, terminal = nil, nil
	_, err = svc.Generate(context.Background(), Request{ID: "req-bad", Kind: domain.ArtifactReadme, URL: "not-a-url"})
	require.Error(t, err)

	assert.Equal(t, []statemachine.PipelineState{statemachine.PipelineValidating}, stages)
	require.Len(t, terminal, 1)
	assert.Equal(t, eventbus.PipelineEventFailed, terminal[0].Type)
	assert.Equal(t, statemachine.PipelineValidating, terminal[0].From)
	assert.True(t, errors.Is(terminal[0].Err, domain.ErrInvalidReference))
}

func TestGenerateAssignsRequestID(t *testing.T) {
	p := &mockPackager{PackageFunc: packedCodebase(t, "code")}
	c := &mockCompleter{CompleteFunc: replyWith("# ok")}

	artifact, err := newTestService(p, c, prompt.Budget{}, nil).Generate(context.Background(), Request{
		Kind: domain.ArtifactReadme,
		URL:  "https://github.com/octocat/Hello-World",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.RequestID)
}
