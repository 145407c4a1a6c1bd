package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dinospring/dinogen/internal/project"
	"github.com/dinospring/dinogen/templategen"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// allModules 模板变动时重新生成全部模块
const allModules = "*"

// devOptions dev 命令选项
type devOptions struct {
	force     bool
	templates string
	debounce  time.Duration // 防抖动时间
}

// devRunner 处理文件变动的核心逻辑
type devRunner struct {
	env        *cliEnv
	opts       devOptions
	modulesDir string
	tmplDir    string
	ctx        context.Context // 用于响应退出信号

	// 防抖动相关
	mu      sync.Mutex
	pending map[string]*time.Timer // key: 模块名，或 * 表示全部

	// 不同 key 的 timer 可能同时到期，生成过程串行执行
	runMu sync.Mutex
	run   func(key string) // 默认为 runGenerate
}

func newDevCmd(env *cliEnv) *cobra.Command {
	var opts devOptions

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "开发模式，监听模块 schema 与模板变动自动生成",
		Long: `开发模式: 监听 .dino-dev/modules 与模板目录
  - 模块 schema 变动: 重新生成该模块
  - 模板变动: 重新生成全部模块
不加 -f 时已存在的文件一律跳过，不询问`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd.Context(), env, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "覆盖已存在的文件")
	cmd.Flags().StringVar(&opts.templates, "templates", "", "模板目录（默认为配置中的 templateName）")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "防抖动时间")
	return cmd
}

// runDev 启动开发模式，直到 ctx 取消
func runDev(ctx context.Context, env *cliEnv, opts devOptions) error {
	ws, err := project.Open(env.fs, env.workDir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	runner := newDevRunner(ctx, env, opts, ws.ModulesDir(), ws.TemplateDir(opts.templates))
	defer runner.stop()

	for _, dir := range []string{runner.modulesDir, runner.tmplDir} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("添加监听目录失败 %s: %w", dir, err)
		}
		env.con.Debug("监听目录: %s", dir)
	}

	env.con.Info("开发模式已启动，监听 %s 与 %s", runner.modulesDir, runner.tmplDir)
	env.con.Info("按 Ctrl+C 退出")
	return runner.watchLoop(ctx, watcher)
}

func newDevRunner(ctx context.Context, env *cliEnv, opts devOptions, modulesDir, tmplDir string) *devRunner {
	r := &devRunner{
		env:        env,
		opts:       opts,
		modulesDir: filepath.Clean(modulesDir),
		tmplDir:    filepath.Clean(tmplDir),
		ctx:        ctx,
		pending:    make(map[string]*time.Timer),
	}
	r.run = r.runGenerate
	return r
}

// watchLoop 事件处理循环
func (r *devRunner) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			r.env.con.Info("\n正在退出...")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.env.con.Warn("监听错误: %v", err)
		}
	}
}

// handleEvent 把文件事件映射为待生成的模块
func (r *devRunner) handleEvent(event fsnotify.Event) {
	// 只关注 Write 和 Create 事件
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	key, ok := r.keyOf(event.Name)
	if !ok {
		return
	}
	r.env.con.Debug("检测到文件变化: %s", event.Name)
	r.schedule(key)
}

// keyOf 模块 schema -> 模块名；模板（含片段）-> *
func (r *devRunner) keyOf(path string) (string, bool) {
	dir, base := filepath.Dir(path), filepath.Base(path)
	switch dir {
	case r.modulesDir:
		ext := filepath.Ext(base)
		if !slices.Contains(project.SchemaExts, ext) {
			return "", false
		}
		return strings.TrimSuffix(base, ext), true
	case r.tmplDir:
		if !strings.HasSuffix(base, templategen.TemplateExt) {
			return "", false
		}
		return allModules, true
	default:
		return "", false
	}
}

// schedule 防抖动调度生成
func (r *devRunner) schedule(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 取消之前的 timer
	if timer, exists := r.pending[key]; exists {
		timer.Stop()
	}

	r.pending[key] = time.AfterFunc(r.opts.debounce, func() {
		// 检查 context 是否已取消
		if r.ctx.Err() != nil {
			return
		}

		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()

		r.runMu.Lock()
		defer r.runMu.Unlock()
		// 等待期间可能已退出
		if r.ctx.Err() != nil {
			return
		}
		r.run(key)
	})
}

// pendingKeys 等待生成的 key，测试用
func (r *devRunner) pendingKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := lo.Keys(r.pending)
	slices.Sort(keys)
	return keys
}

// stop 停止所有待处理的定时器
func (r *devRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, timer := range r.pending {
		timer.Stop()
		delete(r.pending, key)
	}
}

// runGenerate 执行实际的代码生成
// 非 force 模式下已存在的文件直接跳过，不会阻塞在询问上
func (r *devRunner) runGenerate(key string) {
	r.env.con.Debug("触发代码生成: %s", key)

	env := *r.env
	env.confirm = func(string) bool { return false }

	stats, err := runCode(r.ctx, &env, []string{key}, codeOptions{
		force:     r.opts.force,
		templates: r.opts.templates,
	})
	if err != nil {
		r.env.con.Error("生成失败: %v", err)
		return
	}
	r.env.con.Success("生成完成: %d 个文件 (耗时: %v)", stats.Written, stats.TotalDuration)
}
