package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"Q-ITS-Mastery-Backend/internal/client"
	"Q-ITS-Mastery-Backend/internal/quantum"

	"github.com/spf13/viper"
)

const defaultMachineQubits = 16

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	TianYan   TianYanConfig   `mapstructure:"tianyan"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Dify      DifyConfig      `mapstructure:"dify"`
	Session   SessionConfig   `mapstructure:"session"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func (l LogConfig) Debug() bool { return strings.EqualFold(l.Level, "debug") }

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// TianYanConfig 天衍量子云平台配置
type TianYanConfig struct {
	BaseURL        string         `mapstructure:"base_url"`
	LoginKey       string         `mapstructure:"login_key"`
	MachineName    string         `mapstructure:"machine_name"`
	MachineQubits  int            `mapstructure:"machine_qubits"`
	Machines       map[string]int `mapstructure:"machines"`
	Shots          int            `mapstructure:"shots"`
	AnglePrecision int            `mapstructure:"angle_precision"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	PollIntervalMS int            `mapstructure:"poll_interval_ms"`
	MaxWaitSeconds int            `mapstructure:"max_wait_seconds"`
	LoginPath      string         `mapstructure:"login_path"`
	SubmitPath     string         `mapstructure:"submit_path"`
	QueryPath      string         `mapstructure:"query_path"`
	MachinesPath   string         `mapstructure:"machines_path"`
}

type EngineConfig struct {
	BackendTimeoutSeconds int                `mapstructure:"backend_timeout_seconds"`
	TimeThresholds        map[string]float64 `mapstructure:"time_thresholds"`
}

// DifyConfig 题目生成服务 (Dify) 配置
type DifyConfig struct {
	APIURL         string `mapstructure:"api_url"`
	APIKey         string `mapstructure:"api_key"`
	UserID         string `mapstructure:"user_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SessionConfig struct {
	LogsDir            string `mapstructure:"logs_dir"`
	IdleTimeoutMinutes int    `mapstructure:"idle_timeout_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.file", "logs/q-its.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("tianyan.base_url", "https://qc.zdxlz.com")
	v.SetDefault("tianyan.machine_name", "tianyan_sw")
	v.SetDefault("tianyan.machines", map[string]int{"tianyan_swn": 16, "tianyan_sw": 36})
	v.SetDefault("tianyan.shots", 2048)
	v.SetDefault("tianyan.angle_precision", 12)
	v.SetDefault("tianyan.timeout_seconds", 30)
	v.SetDefault("tianyan.poll_interval_ms", 2000)
	v.SetDefault("tianyan.max_wait_seconds", 50)
	v.SetDefault("tianyan.login_path", "/qccp-auth/oauth2/opnId")
	v.SetDefault("tianyan.submit_path", "/qccp-quantum/sdk/api/multiple-experiment/submit")
	v.SetDefault("tianyan.query_path", "/qccp-quantum/sdk/api/multiple-experiment/find/experiment/result")
	v.SetDefault("tianyan.machines_path", "/qccp-quantum/sdk/api/quantum-computer/list")

	v.SetDefault("engine.backend_timeout_seconds", 60)

	v.SetDefault("dify.api_url", "https://api.dify.ai/v1/chat-messages")
	v.SetDefault("dify.user_id", "q-its-user-01")
	v.SetDefault("dify.timeout_seconds", 120)

	v.SetDefault("session.logs_dir", "logs")
	v.SetDefault("session.idle_timeout_minutes", 120)
}

// Load 读取 config.yaml 并叠加 QITS_ 前缀的环境变量。找不到配置文件时只使用默认值和环境变量。
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("QITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// 密钥类配置只写在环境变量里也能生效
	_ = v.BindEnv("tianyan.login_key")
	_ = v.BindEnv("dify.api_key")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TianYan.Shots <= 0 {
		return fmt.Errorf("tianyan.shots 必须为正数，当前为 %d", c.TianYan.Shots)
	}
	if c.TianYan.AnglePrecision < 1 || c.TianYan.AnglePrecision > 15 {
		return fmt.Errorf("tianyan.angle_precision 必须在 1-15 之间，当前为 %d", c.TianYan.AnglePrecision)
	}
	if c.MachineQubits() <= 0 {
		return fmt.Errorf("机器 '%s' 的比特数必须为正数", c.TianYan.MachineName)
	}
	if _, err := c.thresholds(); err != nil {
		return err
	}
	return nil
}

// MachineQubits 返回所选机器的比特数：显式配置优先，其次查机器表，最后回退到 16。
func (c *Config) MachineQubits() int {
	if c.TianYan.MachineQubits > 0 {
		return c.TianYan.MachineQubits
	}
	if n, ok := c.TianYan.Machines[c.TianYan.MachineName]; ok {
		return n
	}
	return defaultMachineQubits
}

func (c *Config) thresholds() (quantum.Thresholds, error) {
	if len(c.Engine.TimeThresholds) == 0 {
		return quantum.DefaultThresholds(), nil
	}
	keys := make([]string, 0, len(c.Engine.TimeThresholds))
	for k := range c.Engine.TimeThresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	th := make(quantum.Thresholds, len(keys))
	for _, k := range keys {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("engine.time_thresholds 的键 %q 不是整数难度", k)
		}
		secs := c.Engine.TimeThresholds[k]
		if secs < 0 {
			return nil, fmt.Errorf("难度 %d 的时间阈值不能为负数", d)
		}
		th[d] = secs
	}
	return th, nil
}

// EngineSettings 生成掌握度评估引擎使用的不可变配置
func (c *Config) EngineSettings() quantum.Config {
	th, err := c.thresholds()
	if err != nil {
		th = quantum.DefaultThresholds()
	}
	return quantum.Config{
		MachineName:    c.TianYan.MachineName,
		Capacity:       c.MachineQubits(),
		Shots:          c.TianYan.Shots,
		AnglePrecision: c.TianYan.AnglePrecision,
		Thresholds:     th,
		BackendTimeout: time.Duration(c.Engine.BackendTimeoutSeconds) * time.Second,
	}
}

func (c *Config) TianYanOptions() client.TianYanOptions {
	t := c.TianYan
	return client.TianYanOptions{
		BaseURL:      t.BaseURL,
		LoginKey:     t.LoginKey,
		MachineName:  t.MachineName,
		Timeout:      time.Duration(t.TimeoutSeconds) * time.Second,
		PollInterval: time.Duration(t.PollIntervalMS) * time.Millisecond,
		MaxWait:      time.Duration(t.MaxWaitSeconds) * time.Second,
		LoginPath:    t.LoginPath,
		SubmitPath:   t.SubmitPath,
		QueryPath:    t.QueryPath,
		MachinesPath: t.MachinesPath,
	}
}
