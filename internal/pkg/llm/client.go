package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/config"
	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/metrics"
)

// Config 模型调用参数，进程启动时确定，之后只读
type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// ConfigFrom 从全局配置中提取 LLM 配置
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		APIURL:      cfg.LLM.APIURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}
}

// NewChatModel 创建 OpenAI 兼容协议的 ChatModel
// 默认指向 Gemini 的 OpenAI 兼容接口
func NewChatModel(ctx context.Context, c Config) (*openai.ChatModel, error) {
	klog.V(6).Infof("[LLM] 创建 ChatModel: model=%s, baseURL=%s", c.Model, c.APIURL)

	temperature := c.Temperature
	maxTokens := c.MaxTokens
	chatConfig := &openai.ChatModelConfig{
		APIKey:      c.APIKey,
		Model:       c.Model,
		Timeout:     c.Timeout,
		Temperature: &temperature,
	}
	if c.APIURL != "" {
		chatConfig.BaseURL = c.APIURL
	}
	if maxTokens > 0 {
		chatConfig.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		klog.Errorf("[LLM] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	return chatModel, nil
}

// Client 单轮补全调用，不做重试
type Client struct {
	cfg       Config
	chatModel model.BaseChatModel
}

func NewClient(c Config, chatModel model.BaseChatModel) *Client {
	return &Client{
		cfg:       c,
		chatModel: chatModel,
	}
}

// Model 返回模型名
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete 提交消息并返回模型生成的原始文本
func (c *Client) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	klog.V(6).Infof("[LLM] Complete 开始: model=%s, messages=%d", c.cfg.Model, len(messages))
	for i, msg := range messages {
		klog.V(8).Infof("[LLM]   Message[%d]: role=%s, contentLength=%d", i, msg.Role, len(msg.Content))
	}

	opts := []model.Option{model.WithTemperature(c.cfg.Temperature)}
	if c.cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.cfg.MaxTokens))
	}

	start := time.Now()
	resp, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		metrics.IncLLMRequest(c.cfg.Model, "error")
		klog.Errorf("[LLM] Generate 失败: model=%s, err=%v", c.cfg.Model, err)
		return "", fmt.Errorf("%w: %v", domain.ErrCompletionFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		metrics.IncLLMRequest(c.cfg.Model, "empty")
		return "", fmt.Errorf("%w: no response from LLM", domain.ErrCompletionFailed)
	}

	metrics.IncLLMRequest(c.cfg.Model, "ok")
	klog.V(6).Infof("[LLM] Complete 完成: responseLength=%d, 耗时=%v", len(resp.Content), time.Since(start))
	return resp.Content, nil
}
