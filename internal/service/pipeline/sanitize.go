package pipeline

import (
	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/utils"
)

// fenceTags 每种产物允许去掉的外层代码块语言标记
var fenceTags = map[domain.ArtifactKind][]string{
	domain.ArtifactReadme:        {"markdown", "md"},
	domain.ArtifactDockerfile:    {"dockerfile", "docker"},
	domain.ArtifactDockerCompose: {"yaml", "yml", "docker-compose"},
}

// Sanitize 按产物类型清洗模型输出，三种产物都会经过清洗
func Sanitize(kind domain.ArtifactKind, raw string) string {
	if kind == domain.ArtifactReadme {
		return utils.SanitizeMarkdown(raw)
	}
	return utils.StripFences(raw, fenceTags[kind]...)
}
