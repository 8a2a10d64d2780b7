package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Packager PackagerConfig `yaml:"packager"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type LLMConfig struct {
	APIURL      string        `yaml:"api_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PackagerConfig 仓库打包工具（repomix）配置
type PackagerConfig struct {
	Command    string        `yaml:"command"`
	Args       []string      `yaml:"args"` // 追加在 --remote/--output 之后的额外参数
	OutputName string        `yaml:"output_name"`
	TempDir    string        `yaml:"temp_dir"` // 为空时使用系统临时目录
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"`
}

// PromptConfig 控制送入模型的代码库大小
type PromptConfig struct {
	MaxCodebaseBytes int    `yaml:"max_codebase_bytes"` // 0 表示不限制
	OverflowPolicy   string `yaml:"overflow_policy"`    // truncate, reject
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回不读取任何外部来源的默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Mode: "debug",
		},
		LLM: LLMConfig{
			APIURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:       "gemini-2.0-flash",
			MaxTokens:   4096,
			Temperature: 0.1,
			Timeout:     5 * time.Minute,
		},
		Packager: PackagerConfig{
			Command:    "repomix",
			OutputName: "packed_codebase.txt",
			Timeout:    10 * time.Minute,
			Workers:    4,
		},
		Prompt: PromptConfig{
			MaxCodebaseBytes: 3_000_000,
			OverflowPolicy:   "truncate",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func loadConfig() *Config {
	config := Default()

	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		klog.Warningf("加载 .env 失败: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			klog.Warningf("解析配置文件失败: path=%s, err=%v", configPath, err)
		}
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if command := os.Getenv("REPOMIX_PATH"); command != "" {
		config.Packager.Command = command
	}
	if tempDir := os.Getenv("PACKAGER_TEMP_DIR"); tempDir != "" {
		config.Packager.TempDir = tempDir
	}
	if workers, err := strconv.Atoi(os.Getenv("PACKAGER_WORKERS")); err == nil && workers > 0 {
		config.Packager.Workers = workers
	}

	if limit, err := strconv.Atoi(os.Getenv("PROMPT_MAX_CODEBASE_BYTES")); err == nil && limit >= 0 {
		config.Prompt.MaxCodebaseBytes = limit
	}
	if policy := os.Getenv("PROMPT_OVERFLOW_POLICY"); policy != "" {
		config.Prompt.OverflowPolicy = policy
	}
}
