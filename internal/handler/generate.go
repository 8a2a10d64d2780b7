package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/service/pipeline"
)

const RequestIDHeader = "X-Request-ID"

// InvalidURLDetail URL 校验失败时返回的 detail
const InvalidURLDetail = "Invalid GitHub repository URL."

// Generator 生成流水线
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*domain.Artifact, error)
}

type GenerateRequest struct {
	URL string `json:"url"` // 空值交给 git.Validate 处理
}

type GenerateHandler struct {
	generator Generator
}

func NewGenerateHandler(generator Generator) *GenerateHandler {
	return &GenerateHandler{generator: generator}
}

// Readme POST /generate-docs-from-url
func (h *GenerateHandler) Readme(c *gin.Context) {
	artifact, ok := h.generate(c, domain.ArtifactReadme)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"readme": artifact.Content})
}

// Dockerfile POST /generate-dockerfile
func (h *GenerateHandler) Dockerfile(c *gin.Context) {
	artifact, ok := h.generate(c, domain.ArtifactDockerfile)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, artifact.Content)
}

// DockerCompose POST /generate-docker-compose
func (h *GenerateHandler) DockerCompose(c *gin.Context) {
	artifact, ok := h.generate(c, domain.ArtifactDockerCompose)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, artifact.Content)
}

func (h *GenerateHandler) generate(c *gin.Context, kind domain.ArtifactKind) (*domain.Artifact, bool) {
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(RequestIDHeader, requestID)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, false
	}

	// 客户端断开后流水线继续执行，保证临时目录按流程清理
	ctx := context.WithoutCancel(c.Request.Context())
	artifact, err := h.generator.Generate(ctx, pipeline.Request{
		ID:   requestID,
		Kind: kind,
		URL:  req.URL,
	})
	if err != nil {
		status, detail := errorResponse(kind, err)
		if status == http.StatusInternalServerError {
			klog.Errorf("[Handler] 生成失败: requestID=%s, kind=%s, err=%v", requestID, kind, err)
		}
		c.JSON(status, gin.H{"detail": detail})
		return nil, false
	}
	return artifact, true
}

// errorResponse 将流水线错误映射为状态码和 detail
func errorResponse(kind domain.ArtifactKind, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidReference):
		return http.StatusBadRequest, InvalidURLDetail
	case errors.Is(err, domain.ErrCodebaseTooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("%s generation failed: %v", kind.DisplayName(), err)
	case errors.Is(err, domain.ErrPackagingFailed), errors.Is(err, domain.ErrCompletionFailed):
		return http.StatusInternalServerError, fmt.Sprintf("%s generation failed: %v", kind.DisplayName(), err)
	default:
		return http.StatusInternalServerError, fmt.Sprintf("%s generation failed: internal error", kind.DisplayName())
	}
}

// Ping GET /ping
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
