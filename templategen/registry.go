package templategen

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/dinospring/dinogen/internal/utils"
)

// HelperRegistry 模板 helper 注册表
// 每个 Generator 持有自己的注册表，helper 名不允许重复
type HelperRegistry struct {
	mu      sync.RWMutex
	helpers map[string]any
}

// NewHelperRegistry 创建空注册表
func NewHelperRegistry() *HelperRegistry {
	return &HelperRegistry{helpers: make(map[string]any)}
}

// DefaultHelpers 创建注册了内置 helper 的注册表
func DefaultHelpers() *HelperRegistry {
	r := NewHelperRegistry()
	r.MustRegister("cap", utils.Capitalize)
	r.MustRegister("snake", utils.ToSnakeCase)
	r.MustRegister("camel", utils.ToCamelCase)
	r.MustRegister("lower", Lower)
	r.MustRegister("colDef", ColumnDefinition)
	r.MustRegister("extends", Extends)
	r.MustRegister("imports", ImportLines)
	return r
}

// Register 注册 helper
// fn 必须是函数，返回 1 个值，或 2 个值且第二个为 error；名字已存在时返回错误
func (r *HelperRegistry) Register(name string, fn any) error {
	if name == "" {
		return fmt.Errorf("helper 名不能为空")
	}
	if fn == nil {
		return fmt.Errorf("helper %q 的实现为 nil", name)
	}
	if err := checkHelper(name, fn); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.helpers[name]; ok {
		return fmt.Errorf("helper %q 已注册", name)
	}
	r.helpers[name] = fn
	return nil
}

var errorType = reflect.TypeFor[error]()

// checkHelper 与 text/template 对 FuncMap 的要求一致，避免加载模板时 panic
func checkHelper(name string, fn any) error {
	typ := reflect.TypeOf(fn)
	if typ.Kind() != reflect.Func {
		return fmt.Errorf("helper %q 不是函数: %T", name, fn)
	}
	switch {
	case typ.NumOut() == 1:
		return nil
	case typ.NumOut() == 2 && typ.Out(1) == errorType:
		return nil
	default:
		return fmt.Errorf("helper %q 的返回值必须是 1 个，或 2 个且第二个为 error: %s", name, typ)
	}
}

// MustRegister 注册 helper，失败时 panic
func (r *HelperRegistry) MustRegister(name string, fn any) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Get 获取 helper
func (r *HelperRegistry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.helpers[name]
	return fn, ok
}

// Names 已注册的 helper 名（排序）
func (r *HelperRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.helpers))
}

// FuncMap 模板函数表：sprig 通用函数 + 已注册 helper，同名时 helper 优先
func (r *HelperRegistry) FuncMap() template.FuncMap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	funcs := sprig.TxtFuncMap()
	maps.Copy(funcs, r.helpers)
	return funcs
}
