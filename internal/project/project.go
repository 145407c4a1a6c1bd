// Package project 项目配置 (.dino-dev/.dino-proj.json) 与工作目录布局
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dinospring/dinogen/internal/utils"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	ConfDirName     = ".dino-dev"
	ConfFileName    = ".dino-proj"
	ModulesDirName  = "modules"
	DefaultTemplate = "templ"
)

// 配置文件与模块 schema 支持的扩展名，按优先级排列
var SchemaExts = []string{".json", ".yaml", ".yml"}

var (
	ErrNotInitialized = errors.New("项目未初始化")
	ErrModuleNotFound = errors.New("模块不存在")
)

// Author 作者信息，写入生成文件的注释
type Author struct {
	Name  string `mapstructure:"name" json:"name"`
	Email string `mapstructure:"email" json:"email,omitempty"`
}

// Config 项目配置，一次调用内不可变
type Config struct {
	Name           string  `mapstructure:"name" json:"name" validate:"required"`
	Type           string  `mapstructure:"type" json:"type" validate:"oneof=spring vue"`
	SrcPath        string  `mapstructure:"srcPath" json:"srcPath" validate:"required"`
	Package        string  `mapstructure:"package" json:"package" validate:"required,javapkg"`
	Author         *Author `mapstructure:"author" json:"author,omitempty"`
	ModulesPackage string  `mapstructure:"modulesPackage" json:"modulesPackage" validate:"omitempty,javapkg"`
	SysPackage     string  `mapstructure:"sysPackage" json:"sysPackage" validate:"omitempty,javapkg"`
	TablePrefix    string  `mapstructure:"tablePrefix" json:"tablePrefix"`
	TemplateName   string  `mapstructure:"templateName" json:"templateName"`
}

// PackageSegments 包名按 . 拆分，空段被忽略
func (c *Config) PackageSegments() []string {
	return splitDotted(c.Package)
}

// ModulesPackageSegments modulesPackage 按 . 拆分
func (c *Config) ModulesPackageSegments() []string {
	return splitDotted(c.ModulesPackage)
}

// ModulesPackageName 生成模块所在的完整包名: com.acme.modules
func (c *Config) ModulesPackageName() string {
	return strings.Join(append(c.PackageSegments(), c.ModulesPackageSegments()...), ".")
}

func splitDotted(s string) []string {
	return slices.DeleteFunc(strings.Split(s, "."), func(seg string) bool {
		return seg == ""
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("type", "spring")
	v.SetDefault("srcPath", filepath.Join("src", "main", "java"))
	v.SetDefault("modulesPackage", "modules")
	v.SetDefault("sysPackage", "sys")
	v.SetDefault("tablePrefix", "t")
	v.SetDefault("templateName", DefaultTemplate)
}

// ConfDir 配置目录 <workDir>/.dino-dev
func ConfDir(workDir string) string {
	return filepath.Join(workDir, ConfDirName)
}

// ModulesDir 模块 schema 目录 <workDir>/.dino-dev/modules
func ModulesDir(workDir string) string {
	return filepath.Join(ConfDir(workDir), ModulesDirName)
}

// FindConfigFile 查找配置文件，依次尝试 .json / .yaml / .yml
func FindConfigFile(fs afero.Fs, workDir string) (string, error) {
	for _, ext := range SchemaExts {
		path := filepath.Join(ConfDir(workDir), ConfFileName+ext)
		ok, err := afero.Exists(fs, path)
		if err != nil {
			return "", fmt.Errorf("检查配置文件 %s 失败: %w", path, err)
		}
		if ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s 中没有 %s.json", ErrNotInitialized, ConfDir(workDir), ConfFileName)
}

// LoadFile 读取指定配置文件并填充默认值
func LoadFile(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	if err := utils.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("配置文件 %s 有误: %w", path, err)
	}
	return &cfg, nil
}

// Load 读取 <workDir>/.dino-dev 下的项目配置
func Load(fs afero.Fs, workDir string) (*Config, error) {
	path, err := FindConfigFile(fs, workDir)
	if err != nil {
		return nil, err
	}
	return LoadFile(fs, path)
}

// Init 初始化项目目录: 写入默认配置并创建 modules 目录
// 已初始化时返回 (false, nil)
func Init(fs afero.Fs, workDir string, cfg Config) (bool, error) {
	if _, err := FindConfigFile(fs, workDir); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotInitialized) {
		return false, err
	}

	if cfg.Name == "" {
		cfg.Name = filepath.Base(workDir)
	}
	if cfg.Type == "" {
		cfg.Type = "spring"
	}
	if cfg.SrcPath == "" {
		cfg.SrcPath = filepath.Join("src", "main", "java")
	}
	if cfg.ModulesPackage == "" {
		cfg.ModulesPackage = "modules"
	}
	if cfg.SysPackage == "" {
		cfg.SysPackage = "sys"
	}
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = "t"
	}
	if cfg.TemplateName == "" {
		cfg.TemplateName = DefaultTemplate
	}
	if err := utils.Validate(&cfg); err != nil {
		return false, fmt.Errorf("初始配置有误: %w", err)
	}

	if err := fs.MkdirAll(ModulesDir(workDir), 0o755); err != nil {
		return false, fmt.Errorf("创建目录 %s 失败: %w", ModulesDir(workDir), err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return false, fmt.Errorf("序列化配置失败: %w", err)
	}
	path := filepath.Join(ConfDir(workDir), ConfFileName+".json")
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("写入配置文件 %s 失败: %w", path, err)
	}
	return true, nil
}

// Workspace 一次命令执行涉及的目录与配置
type Workspace struct {
	WorkDir string
	Config  *Config
	fs      afero.Fs
}

// Open 校验目录结构并加载配置
func Open(fs afero.Fs, workDir string) (*Workspace, error) {
	confDir := ConfDir(workDir)
	if ok, _ := afero.DirExists(fs, confDir); !ok {
		return nil, fmt.Errorf("%w: %s 目录不存在于 %s", ErrNotInitialized, ConfDirName, workDir)
	}
	modulesDir := ModulesDir(workDir)
	if ok, _ := afero.DirExists(fs, modulesDir); !ok {
		return nil, fmt.Errorf("%w: %s 中没有 %s 目录", ErrNotInitialized, confDir, ModulesDirName)
	}

	cfg, err := Load(fs, workDir)
	if err != nil {
		return nil, err
	}
	return &Workspace{WorkDir: workDir, Config: cfg, fs: fs}, nil
}

func (w *Workspace) ModulesDir() string {
	return ModulesDir(w.WorkDir)
}

// TemplateDir 模板目录；override 非空时优先，相对路径基于工作目录
func (w *Workspace) TemplateDir(override string) string {
	dir := override
	if dir == "" {
		dir = w.Config.TemplateName
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(w.WorkDir, dir)
}

// SrcRoot 源码根目录；srcPath 为相对路径时基于工作目录
func (w *Workspace) SrcRoot() string {
	if filepath.IsAbs(w.Config.SrcPath) {
		return w.Config.SrcPath
	}
	return filepath.Join(w.WorkDir, w.Config.SrcPath)
}

// ModuleFiles 列出 modules 目录下的 schema 文件: 模块名 -> 路径
// 同名模块存在多个扩展名时按 SchemaExts 的顺序取第一个
func (w *Workspace) ModuleFiles() (map[string]string, error) {
	entries, err := afero.ReadDir(w.fs, w.ModulesDir())
	if err != nil {
		return nil, fmt.Errorf("读取模块目录 %s 失败: %w", w.ModulesDir(), err)
	}

	files := make(map[string]string)
	rank := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		idx := slices.Index(SchemaExts, ext)
		if idx < 0 {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if prev, ok := rank[name]; ok && prev <= idx {
			continue
		}
		rank[name] = idx
		files[name] = filepath.Join(w.ModulesDir(), entry.Name())
	}
	return files, nil
}

// ModuleNames 所有模块名，按字母序
func (w *Workspace) ModuleNames() ([]string, error) {
	files, err := w.ModuleFiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ResolveModules 把命令行参数解析为 schema 文件路径
// 参数包含 "*" 时返回全部模块；未知模块返回 ErrModuleNotFound
func (w *Workspace) ResolveModules(args []string) ([]string, error) {
	files, err := w.ModuleFiles()
	if err != nil {
		return nil, err
	}
	names, err := w.ModuleNames()
	if err != nil {
		return nil, err
	}

	if slices.Contains(args, "*") {
		args = names
	}

	paths := make([]string, 0, len(args))
	for _, name := range args {
		path, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s (可用模块: %s)", ErrModuleNotFound, name, strings.Join(names, ", "))
		}
		paths = append(paths, path)
	}
	return paths, nil
}
