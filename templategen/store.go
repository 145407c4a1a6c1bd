package templategen

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dinospring/dinogen/internal/console"
	"github.com/spf13/afero"
)

// TemplateExt 模板文件扩展名
const TemplateExt = ".tmpl"

// PartialPrefix 以此开头的模板是公共片段，只供其他模板引用，不单独渲染
const PartialPrefix = "_"

// ErrNoTemplates 模板目录中没有可渲染的模板
var ErrNoTemplates = errors.New("没有可用的模板")

// Store 已编译的模板集合
type Store struct {
	dir       string
	names     []string
	partials  []string
	templates map[string]*template.Template
}

// LoadTemplates 加载 dir 下所有 .tmpl 文件
//   - 模板名为去掉 .tmpl 的文件名，按文件名字典序排列
//   - _ 开头的文件是公共片段，以文件名（含扩展名）注册到每个模板中，
//     也可以在片段里用 {{define}} 声明子模板
//
// 渲染时访问 map 中不存在的 key 会返回错误
// con 为 nil 时不输出加载进度
func LoadTemplates(fs afero.Fs, dir string, funcs template.FuncMap, con *console.Console) (*Store, error) {
	if con == nil {
		con = console.Discard()
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("读取模板目录 %s 失败: %w", dir, err)
	}

	// map 中不存在的 key 直接报错，不输出 <no value>
	root := template.New("").Funcs(funcs).Option("missingkey=error")
	store := &Store{dir: dir, templates: make(map[string]*template.Template)}
	var mains []string

	// 先解析公共片段
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TemplateExt) {
			continue
		}
		if !strings.HasPrefix(entry.Name(), PartialPrefix) {
			mains = append(mains, entry.Name())
			continue
		}
		content, err := afero.ReadFile(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("读取模板片段 %s 失败: %w", entry.Name(), err)
		}
		if _, err := root.New(entry.Name()).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("解析模板片段 %s 失败: %w", entry.Name(), err)
		}
		store.partials = append(store.partials, entry.Name())
		con.Debug("  加载片段: %s", entry.Name())
	}

	for _, file := range mains {
		content, err := afero.ReadFile(fs, filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("读取模板 %s 失败: %w", file, err)
		}

		name := strings.TrimSuffix(file, TemplateExt)
		tmpl, err := root.Clone()
		if err != nil {
			return nil, fmt.Errorf("复制模板 %s 失败: %w", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("解析模板 %s 失败: %w", file, err)
		}

		store.names = append(store.names, name)
		store.templates[name] = tmpl
		con.Info("  加载模板: %s", file)
	}

	if len(store.names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplates, dir)
	}
	con.Info("共加载 %d 个模板, %d 个片段", len(store.names), len(store.partials))
	return store, nil
}

// Dir 模板目录
func (s *Store) Dir() string { return s.dir }

// Names 模板名，加载顺序
func (s *Store) Names() []string { return append([]string(nil), s.names...) }

// Partials 公共片段文件名
func (s *Store) Partials() []string { return append([]string(nil), s.partials...) }

func (s *Store) Len() int { return len(s.names) }

// Render 用 data 渲染指定模板
func (s *Store) Render(name string, data any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("模板 %q 不存在", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("执行模板 %s 失败: %w", name, err)
	}
	return buf.String(), nil
}
