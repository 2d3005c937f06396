package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath 默认配置文件路径，可被 MARKETFLOW_CONFIG 环境变量覆盖
const (
	DefaultPath = "configs/config_local.toml"
	EnvPath     = "MARKETFLOW_CONFIG"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type KafkaConfig struct {
	Brokers          []string          `toml:"brokers"`
	ClientID         string            `toml:"clientID"`
	Version          string            `toml:"version"`
	InitialOffset    string            `toml:"initialOffset"`
	RequiredAcks     string            `toml:"requiredAcks"`
	ProducerRetryMax int               `toml:"producerRetryMax"`
	AutoCreateTopics bool              `toml:"autoCreateTopics"`
	Partitions       int32             `toml:"partitions"`
	Replication      int16             `toml:"replication"`
	Topics           map[string]string `toml:"topics"`
}

// ProcessorConfig 分区处理器的调度参数
type ProcessorConfig struct {
	CheckIntervalSeconds      int `toml:"checkIntervalSeconds"`
	MetadataRetries           int `toml:"metadataRetries"`
	MetadataRetryDelaySeconds int `toml:"metadataRetryDelaySeconds"`
	MetadataTimeoutSeconds    int `toml:"metadataTimeoutSeconds"`
	PollTimeoutMillis         int `toml:"pollTimeoutMillis"`
	JoinTimeoutSeconds        int `toml:"joinTimeoutSeconds"`
	StreamIntervalSeconds     int `toml:"streamIntervalSeconds"`
}

func (p ProcessorConfig) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalSeconds) * time.Second
}

func (p ProcessorConfig) MetadataRetryDelay() time.Duration {
	return time.Duration(p.MetadataRetryDelaySeconds) * time.Second
}

func (p ProcessorConfig) MetadataTimeout() time.Duration {
	return time.Duration(p.MetadataTimeoutSeconds) * time.Second
}

func (p ProcessorConfig) PollTimeout() time.Duration {
	return time.Duration(p.PollTimeoutMillis) * time.Millisecond
}

func (p ProcessorConfig) JoinTimeout() time.Duration {
	return time.Duration(p.JoinTimeoutSeconds) * time.Second
}

func (p ProcessorConfig) StreamInterval() time.Duration {
	return time.Duration(p.StreamIntervalSeconds) * time.Second
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	ProcessorConfig `toml:"processorConfig"`
	LogConfig       `toml:"logConfig"`
	JwtConfig       `toml:"jwtConfig"`
	MetricsConfig   `toml:"metricsConfig"`
}

var (
	config *Config
	mu     sync.Mutex
)

// LoadConfig 从 path 读取配置，path 为空时依次使用环境变量和默认路径
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = DefaultPath
	}

	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("加载配置文件 %s 失败: %w", path, err)
	}
	c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 校验失败: %w", path, err)
	}
	return c, nil
}

// SetConfig 替换全局配置，main 在加载成功后调用
func SetConfig(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = c
}

func GetConfig() *Config {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		c, err := LoadConfig("")
		if err != nil {
			log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
			c = new(Config)
			c.WithDefaults()
		}
		config = c
	}
	return config
}

// WithDefaults 为零值字段填充默认值
func (c *Config) WithDefaults() *Config {
	if c.AppName == "" {
		c.AppName = "MarketFlow"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}

	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.ClientID == "" {
		c.ClientID = "marketflow"
	}
	if c.KafkaConfig.Partitions <= 0 {
		c.KafkaConfig.Partitions = 3
	}
	if c.Replication <= 0 {
		c.Replication = 1
	}
	if c.Topics == nil {
		c.Topics = make(map[string]string)
	}
	for _, name := range []string{"daily", "15min", "options", "historical"} {
		if c.Topics[name] == "" {
			c.Topics[name] = name
		}
		if c.Topics["processed-"+name] == "" {
			c.Topics["processed-"+name] = "processed-" + name
		}
	}

	p := &c.ProcessorConfig
	if p.CheckIntervalSeconds <= 0 {
		p.CheckIntervalSeconds = 30
	}
	if p.MetadataRetries <= 0 {
		p.MetadataRetries = 3
	}
	if p.MetadataRetryDelaySeconds < 0 {
		p.MetadataRetryDelaySeconds = 0
	} else if p.MetadataRetryDelaySeconds == 0 {
		p.MetadataRetryDelaySeconds = 5
	}
	if p.MetadataTimeoutSeconds <= 0 {
		p.MetadataTimeoutSeconds = 10
	}
	if p.PollTimeoutMillis <= 0 {
		p.PollTimeoutMillis = 1000
	}
	if p.JoinTimeoutSeconds <= 0 {
		p.JoinTimeoutSeconds = 5
	}
	if p.StreamIntervalSeconds <= 0 {
		p.StreamIntervalSeconds = 5
	}

	if c.Level == "" {
		c.Level = "info"
	}
	if c.JwtConfig.ExpireHours <= 0 {
		c.JwtConfig.ExpireHours = 24
	}
	if c.JwtConfig.Issuer == "" {
		c.JwtConfig.Issuer = "marketflow"
	}
	if c.MetricsConfig.Path == "" {
		c.MetricsConfig.Path = "/metrics"
	}
	return c
}

// Validate 汇总全部配置错误
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("mainConfig.port %d out of range", c.Port))
	}
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("kafkaConfig.brokers is required"))
	}
	for i, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("kafkaConfig.brokers[%d] is empty", i))
		}
	}
	switch strings.ToLower(c.InitialOffset) {
	case "", "newest", "latest", "oldest", "earliest":
	default:
		errs = append(errs, fmt.Errorf("kafkaConfig.initialOffset %q is not newest or oldest", c.InitialOffset))
	}
	switch strings.ToLower(c.RequiredAcks) {
	case "", "all", "-1", "leader", "local", "1":
	default:
		errs = append(errs, fmt.Errorf("kafkaConfig.requiredAcks %q is not all or leader", c.RequiredAcks))
	}
	if c.ProducerRetryMax < 0 {
		errs = append(errs, errors.New("kafkaConfig.producerRetryMax must not be negative"))
	}
	if c.MetricsConfig.Enabled && !strings.HasPrefix(c.MetricsConfig.Path, "/") {
		errs = append(errs, fmt.Errorf("metricsConfig.path %q must start with /", c.MetricsConfig.Path))
	}
	return errors.Join(errs...)
}
