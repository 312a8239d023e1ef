package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/prompter/binding"
	"github.com/ByLCY/prompter/dsl"
	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/store"
)

// readSource 读取文件；路径为空或 "-" 时读标准输入。
func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("读取标准输入失败: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("无法打开提词稿 %s: %w", path, err)
	}
	return string(data), nil
}

// parseData 解析 --data 传入的 JSON 绑定数据。
func parseData(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

// readScript 读取提词稿：带 script 头的按 DSL 解析，否则视为纯文本并使用配置中的显示参数。
func readScript(path string, data any) (*layout.Script, error) {
	raw, err := readSource(path)
	if err != nil {
		return nil, err
	}
	if dsl.LooksLikeScript(raw) {
		doc, err := dsl.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("解析 DSL 失败: %w", err)
		}
		script, err := layout.ScriptFromDocument(doc, data)
		if err != nil {
			return nil, fmt.Errorf("布局计算失败: %w", err)
		}
		return &script, nil
	}
	title := ""
	if path != "" && path != "-" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &layout.Script{
		Title:    title,
		RawText:  binding.Interpolate(raw, data),
		Settings: cfg.Settings(),
	}, nil
}

// openStore 打开配置的存储目录；设置了口令时加密保存，外层套一层缓存。
func openStore() (store.Store, error) {
	var fopts []store.FileOption
	if pass := cfg.Passphrase(); pass != "" {
		sealer, err := store.NewSealer(pass)
		if err != nil {
			return nil, err
		}
		fopts = append(fopts, store.WithSealer(sealer))
	}
	fs, err := store.NewFileStore(cfg.Store.Dir, fopts...)
	if err != nil {
		return nil, err
	}
	return store.NewCached(fs, cfg.Store.CacheTTL), nil
}

func buildOptions(width int, debug bool) layout.BuildOptions {
	return layout.BuildOptions{
		ContainerWidth: cfg.Display.ContainerWidth,
		Budget:         width,
		Debug:          layout.DebugOptions{Overflow: debug},
	}
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
