package schema

import "github.com/dinospring/dinogen/internal/utils"

// ClassNamesOf 模块名 -> 各角色类名
// order -> OrderEntity, OrderVo, OrderService, OrderRepository, OrderReq, OrderController, OrderSearch
func ClassNamesOf(moduleName string) ClassNames {
	name := utils.Capitalize(moduleName)
	return ClassNames{
		Entity:     name + "Entity",
		Vo:         name + "Vo",
		Service:    name + "Service",
		Dao:        name + "Repository",
		Req:        name + "Req",
		Controller: name + "Controller",
		Search:     name + "Search",
	}
}

// Of 按角色取类名
func (c ClassNames) Of(role Role) string {
	switch role {
	case RoleEntity:
		return c.Entity
	case RoleVo:
		return c.Vo
	case RoleService:
		return c.Service
	case RoleDao:
		return c.Dao
	case RoleReq:
		return c.Req
	case RoleController:
		return c.Controller
	case RoleSearch:
		return c.Search
	default:
		return ""
	}
}

// Lookup 模板占位符查找表: 角色 -> 类名，外加 key -> 主键类型
func (c ClassNames) Lookup(key string) map[string]string {
	m := make(map[string]string, len(Roles)+1)
	for _, role := range Roles {
		m[role] = c.Of(role)
	}
	m["key"] = key
	return m
}
