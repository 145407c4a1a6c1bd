package templategen

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dinospring/dinogen/internal/utils"
	"github.com/dinospring/dinogen/schema"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// ErrUnresolvedToken extends 表达式中的 $token 在类名表中不存在
var ErrUnresolvedToken = errors.New("无法解析的占位符")

// InterfacePrefix 以此开头的 base 表达式表示接口
const InterfacePrefix = "-"

// tokenRegex $entity / $key 等占位符
var tokenRegex = regexp.MustCompile(`\$([a-zA-Z]+)`)

// javaPrimitives 映射到普通列的 Java 类型，其余类型按 jsonb 存储
var javaPrimitives = map[string]struct{}{
	"Boolean": {}, "boolean": {},
	"Double": {}, "double": {},
	"Float": {}, "float": {},
	"Integer": {}, "int": {},
	"Long": {}, "long": {},
	"Short": {}, "short": {},
	"String": {},
	// 日期与精确数值，JPA 原生支持
	"Date": {}, "LocalDate": {}, "LocalDateTime": {}, "LocalTime": {}, "Instant": {},
	"BigDecimal": {},
}

// ColumnDefinition 非基础类型追加 jsonb 列定义
func ColumnDefinition(typeName string) string {
	if _, ok := javaPrimitives[typeName]; ok {
		return ""
	}
	return `, columnDefinition = "jsonb"`
}

// Lower 小写，nil 原样返回
func Lower(v any) any {
	if v == nil {
		return nil
	}
	return utils.ToLower(cast.ToString(v))
}

// Extends 生成类声明的继承子句
//
//	["EntityBase<$key>"], {key: Long}        -> " extends EntityBase<Long>"
//	["A", "-B<$entity>", "-C"], {entity: XE} -> " extends A implements B<XE>, C"
//
// expr 可以是字符串或字符串列表；空名字忽略；未知占位符返回 ErrUnresolvedToken
func Extends(expr any, clazz map[string]string) (string, error) {
	names, err := baseNames(expr)
	if err != nil {
		return "", err
	}

	var classes, interfaces []string
	for _, raw := range names {
		isInterface := strings.HasPrefix(raw, InterfacePrefix)
		name := strings.TrimSpace(strings.TrimPrefix(raw, InterfacePrefix))
		if name == "" {
			continue
		}
		resolved, err := resolveTokens(name, clazz)
		if err != nil {
			return "", err
		}
		if isInterface {
			interfaces = append(interfaces, resolved)
		} else {
			classes = append(classes, resolved)
		}
	}

	var sb strings.Builder
	if len(classes) > 0 {
		sb.WriteString(" extends ")
		sb.WriteString(strings.Join(classes, ", "))
	}
	if len(interfaces) > 0 {
		sb.WriteString(" implements ")
		sb.WriteString(strings.Join(interfaces, ", "))
	}
	return sb.String(), nil
}

func baseNames(expr any) ([]string, error) {
	switch v := expr.(type) {
	case nil:
		return nil, nil
	case string:
		// 不能交给 cast，它会按空白拆分 "Base<$entity, $key>"
		return []string{v}, nil
	case schema.BaseExpr:
		return v, nil
	case []string:
		return v, nil
	default:
		names, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("extends 参数必须是字符串或字符串列表: %w", err)
		}
		return names, nil
	}
}

func resolveTokens(name string, clazz map[string]string) (string, error) {
	var missing []string
	out := tokenRegex.ReplaceAllStringFunc(name, func(tok string) string {
		key := strings.TrimPrefix(tok, "$")
		if v, ok := clazz[key]; ok {
			return v
		}
		missing = append(missing, tok)
		return tok
	})
	if len(missing) > 0 {
		known := lo.Keys(clazz)
		slices.Sort(known)
		return "", fmt.Errorf("%w %s (位于 %q，可用: %s)", ErrUnresolvedToken,
			strings.Join(missing, ", "), name, strings.Join(known, ", "))
	}
	return out, nil
}

// ImportLines 汇总若干字段组的 import 语句，按首次出现顺序去重
//
//	{{ imports .Schema.EntityProps }}
//	import com.acme.modules.customer.Customer;
func ImportLines(groups ...[]schema.Property) string {
	paths := lo.FilterMap(lo.Flatten(groups), func(p schema.Property, _ int) (string, bool) {
		imp := p.Import()
		return imp, imp != ""
	})
	lines := lo.Map(lo.Uniq(paths), func(path string, _ int) string {
		return "import " + path + ";"
	})
	return strings.Join(lines, "\n")
}
