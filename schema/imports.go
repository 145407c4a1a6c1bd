package schema

import (
	"strings"

	"github.com/dinospring/dinogen/internal/project"
	"github.com/dinospring/dinogen/internal/utils"
	"github.com/samber/lo"
)

// RelativeMarker 类型前缀，表示相对于项目生成模块包的类型
//
//	@Customer          -> <package>.<modulesPackage>.customer.Customer
//	@customer.Customer -> <package>.<modulesPackage>.customer.Customer
const RelativeMarker = "@"

// ResolveImports 解析字段类型的 import
//
// 类型（展开 @ 前缀后、去掉泛型参数）包含 "." 时：
//   - Imports 设为去掉泛型参数后的完整类名
//   - Type 改为短类名（保留泛型参数）
//
// 其余情况 Imports 为空。Imports 只由 Type 推导，入参已有的 Imports 一律丢弃
// 返回新的 Property，不修改入参
func ResolveImports(cfg *project.Config, prop Property) Property {
	out := prop.clone()
	out.Imports = nil

	typ := expandRelative(cfg, strings.TrimSpace(prop.Type))
	base, generic := splitGeneric(typ)
	if !strings.Contains(base, ".") {
		return out
	}

	out.Imports = []string{base}
	out.Type = base[strings.LastIndex(base, ".")+1:] + generic
	return out
}

// ResolveAllImports 对模块所有字段执行 ResolveImports，返回新的 Module
func ResolveAllImports(cfg *project.Config, mod Module) Module {
	mod.Props = lo.Map(mod.Props, func(p Property, _ int) Property {
		return ResolveImports(cfg, p)
	})
	return mod
}

// splitGeneric 拆分泛型: java.util.List<Long> -> ("java.util.List", "<Long>")
func splitGeneric(typ string) (base, generic string) {
	if idx := strings.Index(typ, "<"); idx >= 0 {
		return typ[:idx], typ[idx:]
	}
	return typ, ""
}

// expandRelative 展开 @ 前缀
func expandRelative(cfg *project.Config, typ string) string {
	if !strings.HasPrefix(typ, RelativeMarker) {
		return typ
	}
	rest := strings.TrimPrefix(typ, RelativeMarker)
	base, generic := splitGeneric(rest)
	if base == "" {
		return typ
	}
	// @Customer 省略了模块包名，按约定模块包为类名小写
	if !strings.Contains(base, ".") {
		base = utils.ToLower(base) + "." + base
	}

	prefix := cfg.ModulesPackageName()
	if prefix == "" {
		return base + generic
	}
	return prefix + "." + base + generic
}
