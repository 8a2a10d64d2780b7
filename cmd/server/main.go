package main

import (
	"context"
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/repomaster/backend/config"
	"github.com/repomaster/backend/internal/eventbus"
	"github.com/repomaster/backend/internal/handler"
	"github.com/repomaster/backend/internal/pkg/llm"
	"github.com/repomaster/backend/internal/pkg/packager"
	"github.com/repomaster/backend/internal/router"
	"github.com/repomaster/backend/internal/service/pipeline"
	"github.com/repomaster/backend/internal/service/prompt"
	"github.com/repomaster/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()
	if cfg.LLM.APIKey == "" {
		klog.Warning("未设置 GOOGLE_API_KEY / OPENAI_API_KEY，生成请求将在调用模型时失败")
	}

	// 初始化模型
	llmConfig := llm.ConfigFrom(cfg)
	chatModel, err := llm.NewChatModel(context.Background(), llmConfig)
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}
	completer := llm.NewClient(llmConfig, chatModel)
	klog.V(6).Infof("[LLM] 使用模型: %s, baseURL=%s", completer.Model(), llmConfig.APIURL)

	// 打包工具并发由 packager.workers 控制
	repoPackager, err := packager.New(cfg.Packager)
	if err != nil {
		log.Fatalf("Failed to create packager: %v", err)
	}
	defer repoPackager.Release()

	// 事件总线
	bus := eventbus.NewPipelineEventBus()
	subscriber.NewPipelineEventSubscriber().Register(bus)

	svc := pipeline.NewService(repoPackager, prompt.NewAssembler(), completer, prompt.BudgetFrom(cfg.Prompt), bus)
	generateHandler := handler.NewGenerateHandler(svc)

	r := router.Setup(cfg, generateHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
