package schema

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dinospring/dinogen/internal/utils"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// strictJSON 与 YAML 的 KnownFields 一致，拒绝未知字段
var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// LoadModule 读取并校验模块 schema，按扩展名选择 JSON 或 YAML
// 未填写的 key / type 分别默认为 Long / domain
func LoadModule(fs afero.Fs, path string) (Module, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Module{}, fmt.Errorf("读取模块文件 %s 失败: %w", path, err)
	}

	mod, err := ParseModule(data, filepath.Ext(path))
	if err != nil {
		return Module{}, fmt.Errorf("解析模块文件 %s 失败: %w", path, err)
	}
	return mod, nil
}

// ParseModule 解析模块 schema 内容，ext 为 .json / .yaml / .yml
// 两种格式都不允许出现未知字段
func ParseModule(data []byte, ext string) (Module, error) {
	var mod Module
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&mod); err != nil {
			return Module{}, err
		}
	default:
		if err := strictJSON.Unmarshal(data, &mod); err != nil {
			return Module{}, err
		}
	}

	if mod.Key == "" {
		mod.Key = "Long"
	}
	if mod.Type == "" {
		mod.Type = "domain"
	}
	if err := utils.Validate(&mod); err != nil {
		return Module{}, err
	}
	return mod, nil
}
