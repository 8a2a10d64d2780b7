package packager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/config"
	"github.com/repomaster/backend/internal/domain"
	"github.com/repomaster/backend/internal/metrics"
	"github.com/repomaster/backend/internal/pkg/git"
)

// Codebase repomix 输出的单文件代码库
// 持有一个临时目录，调用方必须 Close
type Codebase struct {
	Ref  git.Reference
	Dir  string
	Path string
	Size int64
}

// Read 读取打包后的全部文本
func (c *Codebase) Read() (string, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		// 打包本身已按 ok 计数，读取失败单独记为错误
		metrics.IncError("packager", "read_error")
		return "", fmt.Errorf("%w: read packed file: %v", domain.ErrPackagingFailed, err)
	}
	return string(data), nil
}

// Close 删除临时目录，可重复调用
func (c *Codebase) Close() error {
	if c == nil || c.Dir == "" {
		return nil
	}
	dir := c.Dir
	c.Dir = ""
	if err := os.RemoveAll(dir); err != nil {
		klog.Warningf("[Packager] 清理临时目录失败: dir=%s, err=%v", dir, err)
		return err
	}
	klog.V(6).Infof("[Packager] 已清理临时目录: %s", dir)
	return nil
}

// Packager 调用外部 repomix 将远程仓库打包为单个文本文件
// 子进程在有界的 ants 协程池中运行
type Packager struct {
	command    string
	args       []string
	outputName string
	tempRoot   string
	timeout    time.Duration

	pool *ants.Pool
}

// New 根据配置创建 Packager
func New(cfg config.PackagerConfig) (*Packager, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	outputName := cfg.OutputName
	if outputName == "" {
		outputName = "packed_codebase.txt"
	}
	command := cfg.Command
	if command == "" {
		command = "repomix"
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		klog.Errorf("[Packager] ants pool 初始化失败: %v", err)
		return nil, err
	}

	return &Packager{
		command:    command,
		args:       cfg.Args,
		outputName: outputName,
		tempRoot:   cfg.TempDir,
		timeout:    cfg.Timeout,
		pool:       pool,
	}, nil
}

// Release 释放协程池
func (p *Packager) Release() {
	p.pool.Release()
}

type packResult struct {
	codebase *Codebase
	err      error
}

// Package 打包远程仓库
// 失败时临时目录已被清理；成功时由返回的 Codebase 负责清理
func (p *Packager) Package(ctx context.Context, ref git.Reference) (*Codebase, error) {
	resultCh := make(chan packResult, 1)

	err := p.pool.Submit(func() {
		codebase, err := p.run(ctx, ref)
		resultCh <- packResult{codebase: codebase, err: err}
	})
	if err != nil {
		metrics.IncPackagerRun("spawn_error")
		return nil, fmt.Errorf("%w: submit packaging job: %v", domain.ErrPackagingFailed, err)
	}

	select {
	case res := <-resultCh:
		return res.codebase, res.err
	case <-ctx.Done():
		// 调用方已放弃，任务结束后回收临时目录
		go func() {
			res := <-resultCh
			if res.codebase != nil {
				res.codebase.Close()
			}
		}()
		return nil, fmt.Errorf("%w: %v", domain.ErrPackagingFailed, ctx.Err())
	}
}

func (p *Packager) run(ctx context.Context, ref git.Reference) (*Codebase, error) {
	dir, err := os.MkdirTemp(p.tempRoot, "repomix-")
	if err != nil {
		metrics.IncPackagerRun("spawn_error")
		return nil, fmt.Errorf("%w: create temp dir: %v", domain.ErrPackagingFailed, err)
	}
	codebase := &Codebase{
		Ref:  ref,
		Dir:  dir,
		Path: filepath.Join(dir, p.outputName),
	}

	if err := p.invoke(ctx, ref, codebase.Path); err != nil {
		codebase.Close()
		return nil, err
	}

	info, err := os.Stat(codebase.Path)
	if err != nil {
		codebase.Close()
		metrics.IncPackagerRun("output_error")
		return nil, fmt.Errorf("%w: packed file not produced: %v", domain.ErrPackagingFailed, err)
	}
	f, err := os.Open(codebase.Path)
	if err != nil {
		codebase.Close()
		metrics.IncPackagerRun("output_error")
		return nil, fmt.Errorf("%w: packed file not readable: %v", domain.ErrPackagingFailed, err)
	}
	f.Close()

	codebase.Size = info.Size()
	metrics.IncPackagerRun("ok")
	metrics.ObservePackagedBytes(codebase.Size)
	klog.V(6).Infof("[Packager] 打包完成: repo=%s, path=%s, size=%d", ref, codebase.Path, codebase.Size)
	return codebase, nil
}

func (p *Packager) invoke(ctx context.Context, ref git.Reference, output string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := append([]string{"--remote", ref.String(), "--output", output}, p.args...)
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(6).Infof("[Packager] 执行: %s %s", p.command, strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	klog.V(6).Infof("[Packager] 执行结束: repo=%s, 耗时=%v", ref, time.Since(start))
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		metrics.IncPackagerRun("exit_error")
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = strings.TrimSpace(stdout.String())
		}
		klog.Errorf("[Packager] %s 退出码 %d: %s", p.command, exitErr.ExitCode(), diagnostic)
		return fmt.Errorf("%w: %s exited with status %d: %s", domain.ErrPackagingFailed, p.command, exitErr.ExitCode(), diagnostic)
	}

	metrics.IncPackagerRun("spawn_error")
	klog.Errorf("[Packager] 启动 %s 失败: %v", p.command, err)
	return fmt.Errorf("%w: run %s: %v", domain.ErrPackagingFailed, p.command, err)
}
