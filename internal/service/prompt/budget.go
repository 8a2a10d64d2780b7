package prompt

import (
	"fmt"
	"unicode/utf8"

	"k8s.io/klog/v2"

	"github.com/repomaster/backend/config"
	"github.com/repomaster/backend/internal/domain"
)

// OverflowPolicy 代码库超过上限时的处理方式
type OverflowPolicy string

const (
	OverflowTruncate OverflowPolicy = "truncate"
	OverflowReject   OverflowPolicy = "reject"
)

// TruncationMarker 截断后追加在末尾的提示行
const TruncationMarker = "\n\n[... repository content truncated: %d of %d bytes included ...]\n"

// Budget 限制送入模型的代码库字节数，MaxBytes <= 0 表示不限制
type Budget struct {
	MaxBytes int
	Policy   OverflowPolicy
}

// BudgetFrom 从配置构建 Budget，未知策略按 truncate 处理
func BudgetFrom(cfg config.PromptConfig) Budget {
	policy := OverflowPolicy(cfg.OverflowPolicy)
	if policy != OverflowReject {
		policy = OverflowTruncate
	}
	return Budget{MaxBytes: cfg.MaxCodebaseBytes, Policy: policy}
}

// Fit 按策略处理代码库文本
func (b Budget) Fit(codebase string) (string, error) {
	if b.MaxBytes <= 0 || len(codebase) <= b.MaxBytes {
		return codebase, nil
	}

	if b.Policy == OverflowReject {
		return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrCodebaseTooLarge, len(codebase), b.MaxBytes)
	}

	cut := b.MaxBytes
	// 回退到完整的 UTF-8 字符边界
	for cut > 0 && !utf8.RuneStart(codebase[cut]) {
		cut--
	}
	klog.Warningf("[Prompt] 代码库超过上限，已截断: size=%d, limit=%d", len(codebase), b.MaxBytes)
	return codebase[:cut] + fmt.Sprintf(TruncationMarker, cut, len(codebase)), nil
}
