// Package binding 负责提词稿中 ${...} 占位符的替换。
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 支持 ${name:-默认值}：路径不存在时使用默认值；两者皆无时保留原占位符。
func Interpolate(text string, data any) string {
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-1])
		path, fallback, hasFallback := strings.Cut(expr, ":-")
		path = strings.TrimSpace(path)
		if path != "" && data != nil {
			if val, ok := resolvePath(data, path); ok && val != nil {
				return fmt.Sprint(val)
			}
		}
		if hasFallback {
			return fallback
		}
		return match
	})
}

// Placeholders 按出现顺序列出文本中引用的路径（去重），便于提示未绑定的变量。
func Placeholders(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, groups := range exprPattern.FindAllStringSubmatch(text, -1) {
		path, _, _ := strings.Cut(groups[1], ":-")
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// Vars 将提词稿 vars 段转换为可查找的数据。
func Vars(vars map[string]string) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// Merge 合并多层数据，靠前的层优先；非 map 的层被忽略。
func Merge(layers ...any) map[string]any {
	out := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		m, ok := layers[i].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			if current, ok = descendMap(current, name); !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			var ok bool
			if current, ok = descendArray(current, idx); !ok {
				return nil, false
			}
		}
	}
	return current, true
}

// parseSegment 拆分 items[0][1] 形式的路径片段。
func parseSegment(segment string) (string, []int) {
	name, rest, found := strings.Cut(segment, "[")
	if !found {
		return segment, nil
	}
	var indexes []int
	rest = "[" + rest
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			break
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			// 非法下标：返回无法命中的下标使整条路径失败
			return name, []int{-1}
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []string:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
