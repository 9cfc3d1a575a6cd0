package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Police   PoliceConfig   `mapstructure:"police"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite事件日志文件的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// PoliceConfig 定义了消息频率监测的进程级参数
// 业务阈值本身存放在每个公会的settings里
type PoliceConfig struct {
	// JanitorSpec 是清理空闲追踪器的cron表达式
	JanitorSpec string `mapstructure:"janitorSpec"`
	// IdleRetentionMinutes 是追踪器允许空闲的最长时间（分钟）
	IdleRetentionMinutes int `mapstructure:"idleRetentionMinutes"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. 设置配置文件名和类型
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// 2. 添加配置文件搜索路径
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 3. 设置默认值，保证缺省配置下也能启动
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.sqlite.path", "crunchy.db")
	v.SetDefault("police.janitorSpec", "@hourly")
	v.SetDefault("police.idleRetentionMinutes", 120)

	// 4. 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 5. 读取配置文件（文件缺失时回退到默认值，不视为错误）
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 6. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}
