package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dinospring/dinogen/internal/console"
	"github.com/dinospring/dinogen/internal/project"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkDir = "/work/demo"

var testPkgDir = filepath.Join(testWorkDir, "src", "main", "java", "com", "acme", "modules")

const entityTmpl = `package {{ .Config.Package }}.{{ .Config.ModulesPackage }}.{{ lower .Schema.Name }};

{{ imports .Schema.EntityProps }}

public class {{ .Context.Clazz.entity }}{{ extends (.Schema.BaseOf "entity") .Context.Clazz }} {
{{- range .Schema.EntityProps }}
  private {{ .Type }} {{ .Name }};
{{- end }}
}
`

const voTmpl = `public class {{ .Context.Clazz.vo }}{{ extends (.Schema.BaseOf "vo") .Context.Clazz }} {}
`

type testEnv struct {
	*cliEnv
	out *bytes.Buffer
}

func newTestEnv(t *testing.T, cfg *project.Config) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	if cfg != nil {
		created, err := project.Init(fs, testWorkDir, *cfg)
		require.NoError(t, err)
		require.True(t, created)
	}

	writeFile(t, fs, filepath.Join(testWorkDir, "templ", "entity.tmpl"), entityTmpl)
	writeFile(t, fs, filepath.Join(testWorkDir, "templ", "vo.tmpl"), voTmpl)

	out := &bytes.Buffer{}
	return &testEnv{
		cliEnv: &cliEnv{
			fs:      fs,
			con:     console.New(out, nil),
			workDir: testWorkDir,
			now:     func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local) },
		},
		out: out,
	}
}

func (e *testEnv) addModule(t *testing.T, name, content string) {
	t.Helper()
	writeFile(t, e.fs, filepath.Join(project.ModulesDir(testWorkDir), name), content)
}

func (e *testEnv) execute(args ...string) error {
	cmd := newRootCmd(e.cliEnv)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

const orderSchema = `{
  "name": "order",
  "title": "订单",
  "props": [
    {"name": "id", "type": "Long"},
    {"name": "customer", "type": "@Customer"}
  ]
}`

const customerSchema = `
name: customer
key: String
props:
  - name: name
    type: String
`

func TestCodeCommand(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	env.addModule(t, "order.json", orderSchema)

	require.NoError(t, env.execute("code", "order"))

	entity := readFile(t, env.fs, filepath.Join(testPkgDir, "order", "OrderEntity.java"))
	assert.Contains(t, entity, "package com.acme.modules.order;")
	assert.Contains(t, entity, "import com.acme.modules.customer.Customer;")
	assert.Contains(t, entity, "public class OrderEntity extends EntityBase<Long> {")
	assert.Contains(t, entity, "private Customer customer;")

	vo := readFile(t, env.fs, filepath.Join(testPkgDir, "order", "OrderVo.java"))
	assert.Equal(t, "public class OrderVo extends VoImplBase<Long> {}\n", vo)

	assert.Contains(t, env.out.String(), "加载模板: entity.tmpl")
	assert.Contains(t, env.out.String(), "统计: 1 个模块, 生成 2")
}

func TestCodeCommandAllModules(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	env.addModule(t, "order.json", orderSchema)
	env.addModule(t, "customer.yaml", customerSchema)
	env.addModule(t, "notes.txt", "忽略")

	stats, err := runCode(context.Background(), env.cliEnv, []string{"*"}, codeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Modules)
	assert.Equal(t, 4, stats.Written)

	customer := readFile(t, env.fs, filepath.Join(testPkgDir, "customer", "CustomerEntity.java"))
	assert.Contains(t, customer, "public class CustomerEntity extends EntityBase<String> {")
}

func TestCodeCommandExistingFiles(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	env.addModule(t, "order.json", orderSchema)
	target := filepath.Join(testPkgDir, "order", "OrderVo.java")
	writeFile(t, env.fs, target, "// 手工修改\n")

	var asked []string
	env.confirm = func(path string) bool {
		asked = append(asked, path)
		return false
	}

	stats, err := runCode(context.Background(), env.cliEnv, []string{"order"}, codeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, asked)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, "// 手工修改\n", readFile(t, env.fs, target))

	asked = nil
	stats, err = runCode(context.Background(), env.cliEnv, []string{"order"}, codeOptions{force: true})
	require.NoError(t, err)
	assert.Empty(t, asked)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestCodeCommandErrors(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		env := newTestEnv(t, nil)
		err := env.execute("code", "order")
		assert.ErrorIs(t, err, project.ErrNotInitialized)
	})

	t.Run("unknown module", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme"})
		env.addModule(t, "order.json", orderSchema)
		err := env.execute("code", "order", "invoice")
		require.ErrorIs(t, err, project.ErrModuleNotFound)
		assert.Contains(t, err.Error(), "invoice")
		assert.Contains(t, err.Error(), "order")
	})

	t.Run("missing module argument", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme"})
		assert.Error(t, env.execute("code"))
	})

	t.Run("malformed schema", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme"})
		env.addModule(t, "order.json", `{"name": `)
		err := env.execute("code", "order")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order.json")
	})

	t.Run("vue project", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme", Type: "vue"})
		env.addModule(t, "order.json", orderSchema)
		err := env.execute("code", "order")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vue")
	})

	t.Run("missing templates", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme"})
		env.addModule(t, "order.json", orderSchema)
		err := env.execute("code", "--templates", "nope", "order")
		require.Error(t, err)
		assert.Contains(t, err.Error(), filepath.Join(testWorkDir, "nope"))
	})

	t.Run("unresolved token", func(t *testing.T) {
		env := newTestEnv(t, &project.Config{Package: "com.acme"})
		env.addModule(t, "order.json", `{"name": "order", "base": {"entity": "Base<$missing>"}, "props": []}`)
		err := env.execute("code", "order")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "$missing")

		// 其他模板照常生成
		exists, _ := afero.Exists(env.fs, filepath.Join(testPkgDir, "order", "OrderVo.java"))
		assert.True(t, exists)
	})
}

func TestCodeCommandVerboseTable(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	env.addModule(t, "order.json", orderSchema)

	require.NoError(t, env.execute("-v", "code", "order"))
	out := env.out.String()
	assert.Contains(t, out, "模块")
	assert.Contains(t, out, "written")
	assert.Contains(t, out, filepath.Join("src", "main", "java", "com", "acme", "modules", "order", "OrderEntity.java"))
}

func TestInitCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, env.execute("init", "--package", "com.acme.shop", "--author", "dino"))
	cfg, err := project.Load(env.fs, testWorkDir)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "com.acme.shop", cfg.Package)
	require.NotNil(t, cfg.Author)
	assert.Equal(t, "dino", cfg.Author.Name)
	assert.Contains(t, env.out.String(), "已创建")

	env.out.Reset()
	require.NoError(t, env.execute("init", "--package", "com.other"))
	assert.Contains(t, env.out.String(), "已初始化")
	cfg, err = project.Load(env.fs, testWorkDir)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.shop", cfg.Package)
}

func TestInitCommandErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Error(t, env.execute("init"))
	assert.Error(t, env.execute("init", "--package", "com..acme"))
	assert.Error(t, env.execute("init", "--package", "com.acme", "--type", "android"))
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.execute("version"))
	assert.Equal(t, "dinogen dev", strings.TrimSpace(env.out.String()))
}

func TestDevRunnerKeyOf(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	modulesDir := project.ModulesDir(testWorkDir)
	tmplDir := filepath.Join(testWorkDir, "templ")
	r := newDevRunner(context.Background(), env.cliEnv, devOptions{debounce: time.Hour}, modulesDir, tmplDir)
	defer r.stop()

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{filepath.Join(modulesDir, "order.json"), "order", true},
		{filepath.Join(modulesDir, "customer.yml"), "customer", true},
		{filepath.Join(modulesDir, "order.json.swp"), "", false},
		{filepath.Join(tmplDir, "entity.tmpl"), allModules, true},
		{filepath.Join(tmplDir, "_header.tmpl"), allModules, true},
		{filepath.Join(tmplDir, "README.md"), "", false},
		{filepath.Join(testWorkDir, "order.json"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.keyOf(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDevRunnerDebounce(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	modulesDir := project.ModulesDir(testWorkDir)
	tmplDir := filepath.Join(testWorkDir, "templ")

	t.Run("coalesces events", func(t *testing.T) {
		r := newDevRunner(context.Background(), env.cliEnv, devOptions{debounce: time.Hour}, modulesDir, tmplDir)
		defer r.stop()

		r.handleEvent(fsnotify.Event{Name: filepath.Join(modulesDir, "order.json"), Op: fsnotify.Write})
		r.handleEvent(fsnotify.Event{Name: filepath.Join(modulesDir, "order.json"), Op: fsnotify.Create})
		r.handleEvent(fsnotify.Event{Name: filepath.Join(tmplDir, "vo.tmpl"), Op: fsnotify.Write})
		r.handleEvent(fsnotify.Event{Name: filepath.Join(modulesDir, "customer.json"), Op: fsnotify.Remove})
		assert.Equal(t, []string{"*", "order"}, r.pendingKeys())

		r.stop()
		assert.Empty(t, r.pendingKeys())
	})

	t.Run("fires after quiet period", func(t *testing.T) {
		r := newDevRunner(context.Background(), env.cliEnv, devOptions{debounce: 10 * time.Millisecond}, modulesDir, tmplDir)
		fired := make(chan string, 4)
		r.run = func(key string) { fired <- key }

		r.schedule("order")
		r.schedule("order")

		select {
		case key := <-fired:
			assert.Equal(t, "order", key)
		case <-time.After(time.Second):
			t.Fatal("防抖动后没有触发生成")
		}
		assert.Eventually(t, func() bool { return len(r.pendingKeys()) == 0 }, time.Second, 5*time.Millisecond)
		assert.Empty(t, fired)
	})

	t.Run("runs one key at a time", func(t *testing.T) {
		r := newDevRunner(context.Background(), env.cliEnv, devOptions{debounce: time.Millisecond}, modulesDir, tmplDir)
		defer r.stop()

		var active, maxActive atomic.Int32
		var mu sync.Mutex
		var ran []string
		r.run = func(key string) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)

			mu.Lock()
			ran = append(ran, key)
			mu.Unlock()
		}

		r.schedule(allModules)
		r.schedule("order")
		r.schedule("customer")

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(ran) == 3
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(1), maxActive.Load())
		mu.Lock()
		assert.ElementsMatch(t, []string{"*", "order", "customer"}, ran)
		mu.Unlock()
	})

	t.Run("canceled context skips", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := newDevRunner(ctx, env.cliEnv, devOptions{debounce: time.Millisecond}, modulesDir, tmplDir)
		fired := make(chan string, 1)
		r.run = func(key string) { fired <- key }

		r.schedule("order")
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, fired)
	})
}

func TestDevRunnerNeverPrompts(t *testing.T) {
	env := newTestEnv(t, &project.Config{Package: "com.acme"})
	env.addModule(t, "order.json", orderSchema)
	target := filepath.Join(testPkgDir, "order", "OrderVo.java")
	writeFile(t, env.fs, target, "// 手工修改\n")

	// 即使输入 y 也不应覆盖
	env.con = console.New(env.out, strings.NewReader("y\ny\n"))
	r := newDevRunner(context.Background(), env.cliEnv, devOptions{}, project.ModulesDir(testWorkDir), filepath.Join(testWorkDir, "templ"))
	r.runGenerate("order")

	assert.Equal(t, "// 手工修改\n", readFile(t, env.fs, target))
	assert.True(t, readFile(t, env.fs, filepath.Join(testPkgDir, "order", "OrderEntity.java")) != "")
	assert.NotContains(t, env.out.String(), "是否覆盖")
}
