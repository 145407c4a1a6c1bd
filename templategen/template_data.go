package templategen

import (
	"github.com/dinospring/dinogen/internal/project"
	"github.com/dinospring/dinogen/schema"
)

// TimeLayout Context.Now 的格式
const TimeLayout = "2006-01-02 15:04:05"

// RenderContext 提供给模板的数据
//
//	{{ .Config.Package }}.{{ .Config.ModulesPackage }}.{{ lower .Schema.Name }}
//	public class {{ .Context.Clazz.entity }}{{ extends (.Schema.BaseOf "entity") .Context.Clazz }}
type RenderContext struct {
	// 项目配置
	Config *project.Config

	// 派生后的模块 schema（import 已解析）
	Schema schema.DerivedSchema

	Context RenderInfo
}

// RenderInfo 渲染时的附加信息
type RenderInfo struct {
	// 渲染时间，同一模块的所有文件相同
	Now string

	// 角色 -> 类名，另含 key -> 主键类型
	Clazz map[string]string
}

func newRenderContext(cfg *project.Config, derived schema.DerivedSchema, now string) RenderContext {
	return RenderContext{
		Config: cfg,
		Schema: derived,
		Context: RenderInfo{
			Now:   now,
			Clazz: schema.ClassNamesOf(derived.Name).Lookup(derived.Key),
		},
	}
}
