package git

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/repomaster/backend/internal/domain"
)

var githubURLPattern = regexp.MustCompile(`^https?://(www\.)?github\.com/[\w\-.]+/[\w\-.]+(\.git)?$`)

// Reference 校验通过的 GitHub 仓库地址（已去掉末尾的 /）
type Reference string

func (r Reference) String() string {
	return string(r)
}

// Validate 校验 GitHub 仓库 URL
// 只去掉一个末尾的 /，其余部分必须完整匹配 scheme://[www.]github.com/owner/repo[.git]
func Validate(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.ErrInvalidReference
	}

	normalized := strings.TrimSuffix(trimmed, "/")
	if !githubURLPattern.MatchString(normalized) {
		return "", domain.ErrInvalidReference
	}
	return Reference(normalized), nil
}

// ParseRepoName 解析 owner/repo，用于日志
func ParseRepoName(ref Reference) (string, string, error) {
	url := strings.TrimSuffix(ref.String(), ".git")

	re := regexp.MustCompile(`github\.com/([^/]+)/([^/]+)$`)
	matches := re.FindStringSubmatch(url)
	if len(matches) != 3 {
		return "", "", fmt.Errorf("invalid repo path: %s", ref)
	}
	return matches[1], matches[2], nil
}
