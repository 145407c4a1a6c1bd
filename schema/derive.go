package schema

import (
	"maps"
	"slices"

	"github.com/samber/lo"
)

// defaultBase dinospring 框架的默认父类/接口
// $xxx 在渲染时替换为对应角色的类名，$key 替换为主键类型
var defaultBase = BaseMap{
	RoleEntity:     {"EntityBase<$key>"},
	RoleVo:         {"VoImplBase<$key>"},
	RoleService:    {"ServiceBase<$entity, $key>"},
	RoleDao:        {"CrudRepositoryBase<$entity, $key>"},
	RoleController: {"-CrudControllerBase<$service, $entity, $vo, $search, $req, $key>"},
	RoleSearch:     {"-CustomQuery"},
	RoleReq:        {},
}

// DefaultBase 返回默认父类表的副本
func DefaultBase() BaseMap {
	return maps.Clone(defaultBase)
}

// MergeBase 浅合并：overrides 中出现的角色整体替换默认值
func MergeBase(defaults, overrides BaseMap) BaseMap {
	return lo.Assign(defaults, overrides)
}

// Derive 派生渲染用 schema，不修改入参
//   - SearchProps: 设置了 search 的字段
//   - VoProps / EntityProps / ReqProps: 对应标志不是显式 false 的字段
//   - Base: 默认父类表与模块 base 合并，模块优先
func Derive(mod Module) DerivedSchema {
	mod.Props = slices.Clone(mod.Props)
	mod.Base = MergeBase(defaultBase, mod.Base)

	searchProps := lo.Filter(mod.Props, func(p Property, _ int) bool { return p.Searchable() })
	voProps := lo.Filter(mod.Props, func(p Property, _ int) bool { return p.InVo() })
	entityProps := lo.Filter(mod.Props, func(p Property, _ int) bool { return p.InEntity() })
	reqProps := lo.Filter(mod.Props, func(p Property, _ int) bool { return p.InReq() })

	return DerivedSchema{
		Module:      mod,
		HasSearch:   len(searchProps) > 0,
		HasVo:       len(voProps) > 0,
		SearchProps: searchProps,
		VoProps:     voProps,
		EntityProps: entityProps,
		ReqProps:    reqProps,
	}
}
