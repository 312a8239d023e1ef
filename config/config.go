// Package config 读取 prompter 的 YAML 配置。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/go-utils/envutil"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/playback"
)

const (
	// UserConfigName 位于用户主目录下。
	UserConfigName = ".prompterrc"
	// SystemConfigPath 是系统级配置。
	SystemConfigPath = "/etc/prompter/config.yaml"
)

// Config 是完整配置。
type Config struct {
	Display struct {
		ContainerWidth layout.Length         `yaml:"container_width"`
		FontSize       layout.Length         `yaml:"font_size"`
		LineHeight     layout.LineHeightSpec `yaml:"line_height"`
		// FontFile 供 PDF 打印使用，为空时使用系统字体
		FontFile string `yaml:"font_file"`
	} `yaml:"display"`

	Editor   playback.Surface `yaml:"editor"`
	Playback playback.Surface `yaml:"playback"`

	Store struct {
		Dir              string        `yaml:"dir"`
		PassphraseEnv    string        `yaml:"passphrase_env"`
		AutosaveInterval time.Duration `yaml:"autosave_interval"`
		CacheTTL         time.Duration `yaml:"cache_ttl"`
	} `yaml:"store"`

	Remote struct {
		Addr string `yaml:"addr"`
	} `yaml:"remote"`

	Hotkey struct {
		Toggle string `yaml:"toggle"`
	} `yaml:"hotkey"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Display.ContainerWidth = layout.DefaultContainerWidth
	cfg.Display.FontSize = layout.Px(48)
	cfg.Display.LineHeight = layout.Factor(1.4)

	cfg.Editor = playback.EditorSurface()
	cfg.Playback = playback.PlaybackSurface()

	cfg.Store.Dir = filepath.Join(homeDir(), ".prompter", "scripts")
	cfg.Store.PassphraseEnv = "PROMPTER_PASSPHRASE"
	cfg.Store.AutosaveInterval = 2 * time.Second
	cfg.Store.CacheTTL = 30 * time.Minute

	cfg.Remote.Addr = "127.0.0.1:8090"
	cfg.Hotkey.Toggle = "ctrl+shift+space"
	return cfg
}

func homeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}

// Load 读取配置文件，缺省字段保留默认值，随后应用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// LoadWithFallback 按顺序尝试：显式路径 > ~/.prompterrc > /etc/prompter/config.yaml > 默认值。
// 显式路径读取失败时报错，其余位置失败则继续尝试下一个。
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	for _, p := range []string{filepath.Join(homeDir(), UserConfigName), SystemConfigPath} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if cfg, err := Load(p); err == nil {
			return cfg, nil
		}
	}
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 用环境变量覆盖存储目录与远程监听地址。
func (c *Config) applyEnv() {
	c.Store.Dir = expandHome(envutil.GetEnv("PROMPTER_STORE_DIR", c.Store.Dir))
	c.Remote.Addr = envutil.GetEnv("PROMPTER_REMOTE_ADDR", c.Remote.Addr)
}

func (c *Config) normalize() {
	c.Editor.Name = "editor"
	c.Playback.Name = "playback"
	if c.Display.ContainerWidth.IsZero() {
		c.Display.ContainerWidth = layout.DefaultContainerWidth
	}
	if c.Display.FontSize.IsZero() {
		c.Display.FontSize = layout.Px(48)
	}
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return p
}

// Passphrase 返回存储加密口令；未设置时为空串，表示不加密。
func (c *Config) Passphrase() string {
	if c.Store.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(c.Store.PassphraseEnv)
}

// Budget 返回当前字号与容器宽度下的宽度预算（未钳制）。
func (c *Config) Budget() int {
	return layout.WidthBudget(c.Display.FontSize, c.Display.ContainerWidth)
}

// Settings 返回配置中的默认显示参数。
func (c *Config) Settings() layout.Settings {
	s := layout.DefaultSettings()
	s.FontSize = c.Display.FontSize
	s.LineHeight = c.Display.LineHeight
	return s
}

// Save 写入配置文件，必要时创建目录。
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
