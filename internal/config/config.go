package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
	Ranks    []RankSeed     `mapstructure:"ranks"`
	Packages []PackageSeed  `mapstructure:"packages"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type SQLiteConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PackageEvents string `mapstructure:"package_events"`
	RankEvents    string `mapstructure:"rank_events"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BusinessConfig 佣金引擎相关参数
type BusinessConfig struct {
	MaxChainDepth          int    `mapstructure:"max_chain_depth"`
	MaxDownlineDepth       int    `mapstructure:"max_downline_depth"`
	DownlineNodeBudget     int    `mapstructure:"downline_node_budget"`
	ApprovalTimeoutSeconds int    `mapstructure:"approval_timeout_seconds"`
	IndirectFloorRank      string `mapstructure:"indirect_floor_rank"`
	ConflictRetries        int    `mapstructure:"conflict_retries"`
	MaxRetryCount          int    `mapstructure:"max_retry_count"`
	PackageExpiryCron      string `mapstructure:"package_expiry_cron"`
}

// RankSeed 等级表种子数据，启动时按 title 写入
type RankSeed struct {
	Title          string `mapstructure:"title"`
	RequiredPoints int64  `mapstructure:"required_points"`
	RequiredLines  int    `mapstructure:"required_lines"`
	LineRank       string `mapstructure:"line_rank"`
}

// PackageSeed 套餐种子数据，启动时按 name 写入
type PackageSeed struct {
	Name               string `mapstructure:"name"`
	Amount             string `mapstructure:"amount"`
	DirectCommission   string `mapstructure:"direct_commission"`
	IndirectCommission string `mapstructure:"indirect_commission"`
	Points             int64  `mapstructure:"points"`
	ValidityDays       int    `mapstructure:"validity_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("sqlite.dsn", "file:mlmsystem.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.topic.package_events", "mlm.package_request")
	v.SetDefault("kafka.topic.rank_events", "mlm.rank")
	v.SetDefault("business.max_chain_depth", 20)
	v.SetDefault("business.max_downline_depth", 15)
	v.SetDefault("business.downline_node_budget", 50000)
	v.SetDefault("business.approval_timeout_seconds", 90)
	v.SetDefault("business.indirect_floor_rank", "Manager")
	v.SetDefault("business.conflict_retries", 3)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.package_expiry_cron", "10 0 * * *")
}

// LoadConfig 加载配置文件
// 先加载 .env（不存在则忽略），环境变量 MLM_* 覆盖 YAML 中的同名配置
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验业务配置
func (c *Config) Validate() error {
	if c.Database.Driver != DriverMySQL && c.Database.Driver != DriverSQLite {
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Business.MaxChainDepth <= 0 || c.Business.MaxDownlineDepth <= 0 {
		return errors.New("链路深度限制必须大于0")
	}
	if c.Business.DownlineNodeBudget <= 0 {
		return errors.New("下线遍历节点预算必须大于0")
	}
	if len(c.Ranks) == 0 {
		return errors.New("等级表不能为空")
	}

	titles := make(map[string]bool, len(c.Ranks))
	for _, r := range c.Ranks {
		titles[r.Title] = true
	}
	for _, r := range c.Ranks {
		if r.RequiredLines > 0 && !titles[r.LineRank] {
			return fmt.Errorf("等级 %s 的下线等级 %s 不存在", r.Title, r.LineRank)
		}
	}
	if !titles[c.Business.IndirectFloorRank] {
		return fmt.Errorf("间接佣金起始等级 %s 不存在", c.Business.IndirectFloorRank)
	}
	return nil
}
