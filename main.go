package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dinospring/dinogen/internal/console"
	"github.com/dinospring/dinogen/internal/project"
	"github.com/dinospring/dinogen/schema"
	"github.com/dinospring/dinogen/templategen"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// cliEnv 命令运行环境，测试时替换为内存文件系统
type cliEnv struct {
	fs      afero.Fs
	con     *console.Console
	workDir string
	now     func() time.Time
	confirm templategen.ConfirmFunc // nil 时在控制台询问
}

type codeOptions struct {
	force     bool
	templates string
	diff      bool
}

func main() {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env := &cliEnv{
		fs:      afero.NewOsFs(),
		con:     console.Default(),
		workDir: workDir,
		now:     time.Now,
	}
	if err := newRootCmd(env).ExecuteContext(ctx); err != nil {
		env.con.Error("%v", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "dinogen",
		Short: "dinospring 代码生成工具",
		Long: `dinogen - 根据模块 schema 和模板目录生成 dinospring 后端代码

工作目录结构:
  .dino-dev/.dino-proj.json    项目配置
  .dino-dev/modules/*.json     模块 schema（也支持 .yaml / .yml）
  templ/*.tmpl                 模板，文件名即生成类的后缀`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env.con.SetVerbose(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出")
	root.SetOut(env.con.Writer())
	root.SetErr(env.con.Writer())

	root.AddCommand(
		newCodeCmd(env),
		newDevCmd(env),
		newInitCmd(env),
		newVersionCmd(),
	)
	return root
}

func newCodeCmd(env *cliEnv) *cobra.Command {
	var opts codeOptions

	cmd := &cobra.Command{
		Use:   "code <module...>",
		Short: "根据模块 schema 生成代码",
		Example: `  dinogen code order            生成 order 模块
  dinogen code order customer   生成多个模块
  dinogen code '*'              生成全部模块
  dinogen code -f --diff order  强制覆盖已存在的文件`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runCode(cmd.Context(), env, args, opts)
			return err
		},
	}
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "覆盖已存在的文件，不询问")
	cmd.Flags().StringVar(&opts.templates, "templates", "", "模板目录（默认为配置中的 templateName）")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "询问覆盖前显示差异")
	return cmd
}

// runCode 加载工作目录下的配置与模块，生成代码
func runCode(ctx context.Context, env *cliEnv, args []string, opts codeOptions) (*templategen.Stats, error) {
	ws, err := project.Open(env.fs, env.workDir)
	if err != nil {
		return nil, err
	}
	if ws.Config.Type != "spring" {
		return nil, fmt.Errorf("暂不支持 %s 类型的项目", ws.Config.Type)
	}

	paths, err := ws.ResolveModules(args)
	if err != nil {
		return nil, err
	}
	mods, err := loadModules(env.fs, paths)
	if err != nil {
		return nil, err
	}

	tmplDir := ws.TemplateDir(opts.templates)
	env.con.Info("开始生成 %s 代码，模板目录 %s", console.Highlight(ws.Config.Type), tmplDir)

	gen := templategen.NewGenerator(generatorOptions(env, opts.diff)...)
	stats, err := gen.Generate(ctx, templategen.Request{
		Config:      ws.Config,
		Modules:     mods,
		TemplateDir: tmplDir,
		OutputRoot:  ws.WorkDir,
		Force:       opts.force,
	})
	printStats(env.con, ws.WorkDir, stats)
	return stats, err
}

func loadModules(fs afero.Fs, paths []string) ([]schema.Module, error) {
	mods := make([]schema.Module, 0, len(paths))
	for _, path := range paths {
		mod, err := schema.LoadModule(fs, path)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func generatorOptions(env *cliEnv, diff bool) []templategen.Option {
	opts := []templategen.Option{
		templategen.WithFs(env.fs),
		templategen.WithConsole(env.con),
		templategen.WithShowDiff(diff),
	}
	if env.now != nil {
		opts = append(opts, templategen.WithNow(env.now))
	}
	if env.confirm != nil {
		opts = append(opts, templategen.WithConfirm(env.confirm))
	}
	return opts
}

// printStats 输出统计信息，-v 时附带逐个文件的明细
func printStats(con *console.Console, workDir string, stats *templategen.Stats) {
	if stats == nil || stats.Modules == 0 {
		return
	}

	if con.Verbose() && len(stats.Files) > 0 {
		rows := [][]string{{"模块", "模板", "结果", "文件"}}
		for _, f := range stats.Files {
			path := f.Path
			if rel, err := filepath.Rel(workDir, f.Path); err == nil {
				path = rel
			}
			rows = append(rows, []string{f.Module, f.Template, string(f.Outcome), path})
		}
		con.Info("")
		con.Table(rows)
	}

	con.Info("\n统计: %d 个模块, 生成 %d, 跳过 %d, 未变化 %d, 失败 %d",
		stats.Modules, stats.Written, stats.Skipped, stats.Unchanged, stats.Failed)
	con.Info("耗时: 加载模板 %v, 生成 %v, 总计 %v",
		stats.LoadDuration, stats.GenerateDuration, stats.TotalDuration)
}

func newInitCmd(env *cliEnv) *cobra.Command {
	var (
		cfg         project.Config
		authorName  string
		authorEmail string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "初始化 .dino-dev 目录与项目配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if authorName != "" || authorEmail != "" {
				cfg.Author = &project.Author{Name: authorName, Email: authorEmail}
			}
			created, err := project.Init(env.fs, env.workDir, cfg)
			if err != nil {
				return err
			}
			if !created {
				env.con.Warn("%s 已初始化，未做修改", project.ConfDir(env.workDir))
				return nil
			}
			env.con.Success("已创建 %s", project.ConfDir(env.workDir))
			env.con.Info("在 %s 中添加模块 schema 后运行 dinogen code <module>", project.ModulesDir(env.workDir))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Name, "name", "", "项目名（默认为目录名）")
	f.StringVar(&cfg.Package, "package", "", "Java 根包名，如 com.acme.demo")
	f.StringVar(&cfg.Type, "type", "spring", "项目类型: spring | vue")
	f.StringVar(&cfg.SrcPath, "src-path", "", "源码目录（默认 src/main/java）")
	f.StringVar(&cfg.ModulesPackage, "modules-package", "", "生成模块所在的子包（默认 modules）")
	f.StringVar(&cfg.TablePrefix, "table-prefix", "", "表名前缀（默认 t）")
	f.StringVar(&cfg.TemplateName, "templates", "", "模板目录（默认 templ）")
	f.StringVar(&authorName, "author", "", "作者名")
	f.StringVar(&authorEmail, "email", "", "作者邮箱")
	lo.Must0(cmd.MarkFlagRequired("package"))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("dinogen %s\n", version)
		},
	}
}
