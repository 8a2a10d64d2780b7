package domain

import (
	"errors"
)

// ArtifactKind 生成产物的类型，每种类型绑定唯一的提示词模板
type ArtifactKind string

var (
	ArtifactReadme        ArtifactKind = "readme"         // README 文档
	ArtifactDockerfile    ArtifactKind = "dockerfile"     // Dockerfile
	ArtifactDockerCompose ArtifactKind = "docker-compose" // docker-compose.yml
)

// ArtifactKinds 返回全部已注册的产物类型
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactReadme, ArtifactDockerfile, ArtifactDockerCompose}
}

// DisplayName 用于错误提示，例如 "Dockerfile generation failed"
func (k ArtifactKind) DisplayName() string {
	switch k {
	case ArtifactReadme:
		return "Documentation"
	case ArtifactDockerfile:
		return "Dockerfile"
	case ArtifactDockerCompose:
		return "Docker Compose"
	default:
		return string(k)
	}
}

// ArtifactRequest 一次生成请求：产物类型 + 打包后的代码库文本
type ArtifactRequest struct {
	Kind     ArtifactKind
	Codebase string
}

// Artifact 清洗后的生成结果
type Artifact struct {
	Kind      ArtifactKind
	Content   string
	RequestID string
}

// 错误定义
var (
	ErrInvalidReference    = errors.New("invalid github repository url")
	ErrPackagingFailed     = errors.New("repository packaging failed")
	ErrCompletionFailed    = errors.New("completion failed")
	ErrCodebaseTooLarge    = errors.New("packaged codebase exceeds prompt size limit")
	ErrUnknownArtifactKind = errors.New("unknown artifact kind")
)
