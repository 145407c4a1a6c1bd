// Package schema 模块 schema 的数据模型、加载与派生
//
// 一个模块 schema 描述一个领域对象：字段、类型、各角色是否包含该字段，
// 以及生成类的父类/接口模板。派生过程是纯函数，不修改输入。
package schema

import (
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Role 生成类的角色
type Role = string

const (
	RoleEntity     Role = "entity"
	RoleVo         Role = "vo"
	RoleService    Role = "service"
	RoleDao        Role = "dao"
	RoleReq        Role = "req"
	RoleController Role = "controller"
	RoleSearch     Role = "search"
)

// Roles 全部角色，顺序固定
var Roles = []Role{RoleEntity, RoleVo, RoleService, RoleDao, RoleReq, RoleController, RoleSearch}

// SearchOp 查询条件操作符
type SearchOp string

const (
	SearchEq     SearchOp = "eq"
	SearchEquals SearchOp = "equals"
	SearchLike   SearchOp = "like"
	SearchIn     SearchOp = "in"
)

// Property 模块字段
type Property struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Title    string   `json:"title" yaml:"title"`
	Type     string   `json:"type" yaml:"type" validate:"required"`
	Size     *int     `json:"size,omitempty" yaml:"size,omitempty"`
	Nullable *bool    `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Update   *bool    `json:"update,omitempty" yaml:"update,omitempty"`
	Entity   *bool    `json:"entity,omitempty" yaml:"entity,omitempty"`
	Vo       *bool    `json:"vo,omitempty" yaml:"vo,omitempty"`
	Req      *bool    `json:"req,omitempty" yaml:"req,omitempty"`
	Search   SearchOp `json:"search,omitempty" yaml:"search,omitempty" validate:"omitempty,oneof=eq equals like in"`

	// Imports 只由 ResolveImports 根据 Type 推导，不从 schema 文件读取
	Imports []string `json:"-" yaml:"-"`
}

// 各角色默认包含该字段，只有显式 false 才排除
func (p Property) InEntity() bool { return p.Entity == nil || *p.Entity }
func (p Property) InVo() bool     { return p.Vo == nil || *p.Vo }
func (p Property) InReq() bool    { return p.Req == nil || *p.Req }

// Searchable 是否作为查询条件
func (p Property) Searchable() bool { return p.Search != "" }

// IsNullable 未声明时视为可空
func (p Property) IsNullable() bool { return p.Nullable == nil || *p.Nullable }

// Import 第一个 import，没有时为空串
func (p Property) Import() string {
	if len(p.Imports) == 0 {
		return ""
	}
	return p.Imports[0]
}

func (p Property) clone() Property {
	p.Imports = slices.Clone(p.Imports)
	return p
}

// Module 模块 schema
type Module struct {
	Name          string     `json:"name" yaml:"name" validate:"required"`
	Package       string     `json:"package,omitempty" yaml:"package,omitempty"`
	Type          string     `json:"type" yaml:"type" validate:"oneof=domain record"`
	Title         string     `json:"title" yaml:"title"`
	Key           string     `json:"key" yaml:"key" validate:"oneof=Long String"`
	Tenantable    bool       `json:"tenantable,omitempty" yaml:"tenantable,omitempty"`
	LogicalDelete bool       `json:"logicalDelete,omitempty" yaml:"logicalDelete,omitempty"`
	Base          BaseMap    `json:"base,omitempty" yaml:"base,omitempty"`
	Props         []Property `json:"props" yaml:"props" validate:"dive"`
}

// BaseMap 角色 -> 父类/接口表达式
type BaseMap map[Role]BaseExpr

// BaseExpr 父类/接口表达式列表
// 文件中既可以写单个字符串，也可以写字符串数组；"-" 前缀表示接口
type BaseExpr []string

func (e *BaseExpr) fromAny(raw any) error {
	switch v := raw.(type) {
	case nil:
		*e = nil
	case string:
		if v == "" {
			*e = BaseExpr{}
		} else {
			*e = BaseExpr{v}
		}
	default:
		items, err := cast.ToStringSliceE(v)
		if err != nil {
			return fmt.Errorf("base 表达式必须是字符串或字符串数组: %w", err)
		}
		*e = BaseExpr(items)
	}
	return nil
}

func (e *BaseExpr) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	return e.fromAny(raw)
}

func (e *BaseExpr) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return e.fromAny(raw)
}

// ClassNames 各角色的类名
type ClassNames struct {
	Entity     string
	Vo         string
	Service    string
	Dao        string
	Req        string
	Controller string
	Search     string
}

// DerivedSchema 渲染用的派生 schema
type DerivedSchema struct {
	Module

	HasSearch   bool
	HasVo       bool
	SearchProps []Property
	VoProps     []Property
	EntityProps []Property
	ReqProps    []Property
}

// BaseOf 模板中取某个角色的父类表达式: {{ .Schema.BaseOf "entity" }}
func (d DerivedSchema) BaseOf(role string) BaseExpr {
	return d.Base[role]
}
