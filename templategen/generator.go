// Package templategen 用模块 schema 渲染模板目录，生成 Java 源文件
//
// 一个模块 × 一个模板 = 一个文件：
//
//	<srcPath>/<package>/<modulesPackage>/<module>/<Module><Template>.java
//
// 例如模板 templ/entity.tmpl 与模块 order 生成 OrderEntity.java。
package templategen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dinospring/dinogen/internal/console"
	"github.com/dinospring/dinogen/internal/project"
	"github.com/dinospring/dinogen/internal/utils"
	"github.com/dinospring/dinogen/schema"
	"github.com/spf13/afero"
)

// JavaExt 生成文件扩展名
const JavaExt = ".java"

// Outcome 单个文件的处理结果
type Outcome string

const (
	OutcomeWritten   Outcome = "written"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// FileResult 单个文件的处理记录
type FileResult struct {
	Module   string
	Template string
	Path     string
	Outcome  Outcome
	Err      error
}

// Stats 一次生成的统计信息
type Stats struct {
	Modules   int
	Written   int
	Skipped   int
	Unchanged int
	Failed    int
	Files     []FileResult

	LoadDuration     time.Duration // 加载模板耗时
	GenerateDuration time.Duration // 渲染与写文件耗时
	TotalDuration    time.Duration // 总耗时
}

func (s *Stats) add(r FileResult) {
	s.Files = append(s.Files, r)
	switch r.Outcome {
	case OutcomeWritten:
		s.Written++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeFailed:
		s.Failed++
	}
}

// ConfirmFunc 目标文件已存在时询问是否覆盖，返回 true 表示覆盖
type ConfirmFunc func(path string) bool

// Request 一次生成请求
type Request struct {
	Config  *project.Config
	Modules []schema.Module

	// 模板目录
	TemplateDir string

	// 相对 srcPath 的基准目录，一般是工作目录；为空时 srcPath 按原样使用
	OutputRoot string

	// 覆盖已存在的文件，不询问
	Force bool
}

// Generator 渲染驱动
type Generator struct {
	fs       afero.Fs
	con      *console.Console
	helpers  *HelperRegistry
	now      func() time.Time
	confirm  ConfirmFunc
	showDiff bool
}

// Option Generator 选项
type Option func(*Generator)

// WithFs 指定文件系统，默认 OS 文件系统
func WithFs(fs afero.Fs) Option {
	return func(g *Generator) { g.fs = fs }
}

// WithConsole 指定输出
func WithConsole(con *console.Console) Option {
	return func(g *Generator) { g.con = con }
}

// WithNow 指定时钟
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithConfirm 指定覆盖确认方式，默认在控制台询问
func WithConfirm(fn ConfirmFunc) Option {
	return func(g *Generator) { g.confirm = fn }
}

// WithShowDiff 询问覆盖前输出 diff
func WithShowDiff(show bool) Option {
	return func(g *Generator) { g.showDiff = show }
}

// WithHelpers 替换 helper 注册表
func WithHelpers(r *HelperRegistry) Option {
	return func(g *Generator) { g.helpers = r }
}

// NewGenerator 创建 Generator
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		fs:  afero.NewOsFs(),
		con: console.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.helpers == nil {
		g.helpers = DefaultHelpers()
	}
	if g.confirm == nil {
		con := g.con
		g.confirm = func(path string) bool {
			return con.Confirm(fmt.Sprintf("%s 已存在，是否覆盖?", filepath.Base(path)))
		}
	}
	return g
}

// Helpers 当前使用的 helper 注册表，可在 Generate 前追加自定义 helper
func (g *Generator) Helpers() *HelperRegistry {
	return g.helpers
}

// Generate 按模块顺序 × 模板顺序生成文件
//
// 模板目录无法加载时直接返回错误；单个文件渲染或写入失败只记录，
// 继续处理其余文件，最后汇总为一个错误返回
func (g *Generator) Generate(ctx context.Context, req Request) (*Stats, error) {
	totalStart := time.Now()
	stats := &Stats{}

	if req.Config == nil {
		return stats, fmt.Errorf("缺少项目配置")
	}

	loadStart := time.Now()
	store, err := LoadTemplates(g.fs, req.TemplateDir, g.helpers.FuncMap(), g.con)
	if err != nil {
		return stats, err
	}
	stats.LoadDuration = time.Since(loadStart)

	genStart := time.Now()
	var errs []error
	for _, mod := range req.Modules {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stats.Modules++
		errs = append(errs, g.generateModule(ctx, req, store, mod, stats)...)
	}
	stats.GenerateDuration = time.Since(genStart)
	stats.TotalDuration = time.Since(totalStart)

	return stats, errors.Join(errs...)
}

func (g *Generator) generateModule(ctx context.Context, req Request, store *Store, mod schema.Module, stats *Stats) []error {
	g.con.Info("模块: %s", console.Highlight(mod.Name))

	derived := schema.Derive(schema.ResolveAllImports(req.Config, mod))
	g.con.Dump("派生 schema:", derived)

	pkgDir := PackageDir(req.OutputRoot, req.Config, mod.Name)
	if err := g.fs.MkdirAll(pkgDir, 0o755); err != nil {
		err = fmt.Errorf("创建目录 %s 失败: %w", pkgDir, err)
		for _, name := range store.Names() {
			stats.add(FileResult{Module: mod.Name, Template: name, Path: TargetFile(pkgDir, mod.Name, name), Outcome: OutcomeFailed, Err: err})
		}
		g.con.Error("%v", err)
		return []error{err}
	}

	data := newRenderContext(req.Config, derived, g.now().Format(TimeLayout))

	var errs []error
	for _, name := range store.Names() {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}

		target := TargetFile(pkgDir, mod.Name, name)
		result := FileResult{Module: mod.Name, Template: name, Path: target}

		outcome, err := g.renderFile(store, name, data, target, req.Force)
		result.Outcome = outcome
		if err != nil {
			err = fmt.Errorf("模块 %s 模板 %s: %w", mod.Name, name, err)
			result.Err = err
			errs = append(errs, err)
			g.con.Error("%v", err)
		}
		stats.add(result)
	}
	return errs
}

func (g *Generator) renderFile(store *Store, name string, data RenderContext, target string, force bool) (Outcome, error) {
	content, err := store.Render(name, data)
	if err != nil {
		return OutcomeFailed, err
	}
	label := utils.Capitalize(name)

	old, err := afero.ReadFile(g.fs, target)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// 新文件
	case err != nil:
		return OutcomeFailed, fmt.Errorf("读取 %s 失败: %w", target, err)
	case bytes.Equal(old, []byte(content)):
		g.con.Debug("  未变化: %s", target)
		return OutcomeUnchanged, nil
	case !force:
		if g.showDiff {
			if err := g.con.Diff(target, old, []byte(content)); err != nil {
				return OutcomeFailed, err
			}
		}
		if !g.confirm(target) {
			g.con.Info("  跳过: %s", target)
			return OutcomeSkipped, nil
		}
	}

	if err := afero.WriteFile(g.fs, target, []byte(content), 0o644); err != nil {
		return OutcomeFailed, fmt.Errorf("写入 %s 失败: %w", target, err)
	}
	g.con.Info("  生成: %s -> %s", label, target)
	return OutcomeWritten, nil
}

// PackageDir 模块的输出目录
//
//	<root>/<srcPath>/<package 各段>/<modulesPackage 各段>/<小写模块名>
func PackageDir(root string, cfg *project.Config, moduleName string) string {
	parts := []string{cfg.SrcPath}
	if root != "" && !filepath.IsAbs(cfg.SrcPath) {
		parts = append([]string{root}, parts...)
	}
	parts = append(parts, cfg.PackageSegments()...)
	parts = append(parts, cfg.ModulesPackageSegments()...)
	parts = append(parts, utils.ToLower(moduleName))
	return filepath.Join(parts...)
}

// TargetFile 目标文件路径: <pkgDir>/<Module><Template>.java
func TargetFile(pkgDir, moduleName, templateName string) string {
	return filepath.Join(pkgDir, utils.Capitalize(moduleName)+utils.Capitalize(templateName)+JavaExt)
}
