// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，由 yaml 文件加载后再叠加环境变量
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	LogLevel   string           `yaml:"logLevel"`
	Order      OrderConfig      `yaml:"order"`
	Promotion  PromotionConfig  `yaml:"promotion"`
	Settlement SettlementConfig `yaml:"settlement"`
	Alipay     AlipayConfig     `yaml:"alipay"`
}

type OrderConfig struct {
	// PendingWindow 超过该时长仍未支付的订单会被回收
	PendingWindow time.Duration `yaml:"pendingWindow"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	// SweepBatchSize 单轮最多回收的订单数
	SweepBatchSize int `yaml:"sweepBatchSize"`
	// TomatoRate 每 1 元可兑换的番茄币数量
	TomatoRate int `yaml:"tomatoRate"`
}

type PromotionConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expirySweepInterval"`
}

type SettlementConfig struct {
	CommitMaxAttempts    int           `yaml:"commitMaxAttempts"`
	CommitInitialBackoff time.Duration `yaml:"commitInitialBackoff"`
	CommitMaxBackoff     time.Duration `yaml:"commitMaxBackoff"`
	CommitMultiplier     float64       `yaml:"commitMultiplier"`
}

type AlipayConfig struct {
	AppID string `yaml:"appId"`
	// Production 为 false 时走沙箱网关
	Production bool   `yaml:"production"`
	NotifyURL  string `yaml:"notifyUrl"`
	ReturnURL  string `yaml:"returnUrl"`
	// PrivateKey 商户应用私钥，开放平台导出的 PKCS1/PKCS8 base64
	PrivateKey string `yaml:"privateKey"`
	// AlipayPublicKey 支付宝公钥 base64，用于验证异步通知签名
	AlipayPublicKey string `yaml:"alipayPublicKey"`
}

type InfraConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	OrderTopic  string   `yaml:"orderTopic"`
	ConsumerGrp string   `yaml:"consumerGroup"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次加载的配置；未加载时返回默认配置
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return DefaultConfig()
}

// DefaultConfig 返回本地开发可直接运行的默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			Order: OrderConfig{
				PendingWindow:  30 * time.Minute,
				SweepInterval:  15 * time.Second,
				SweepBatchSize: 200,
				TomatoRate:     10,
			},
			Promotion: PromotionConfig{ExpirySweepInterval: 15 * time.Second},
			Settlement: SettlementConfig{
				CommitMaxAttempts:    3,
				CommitInitialBackoff: 100 * time.Millisecond,
				CommitMaxBackoff:     1000 * time.Millisecond,
				CommitMultiplier:     2,
			},
		},
		Infra: InfraConfig{
			Database: DatabaseConfig{
				Driver:          "mysql",
				Host:            "localhost",
				Port:            3306,
				User:            "root",
				Name:            "tomato_mall",
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
			Redis:  RedisConfig{Addrs: []string{"localhost:6379"}, CacheTTL: time.Minute},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, OrderTopic: "order-events", ConsumerGrp: "order-service"},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{
				SessionTimeout: 10 * time.Second,
			},
		},
	}
}

// LoadConfig 依次读取 .env、yaml 配置文件 (CONFIG_PATH) 与环境变量覆盖项
func LoadConfig() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := getEnv("CONFIG_PATH", "configs/config.yaml"); path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config file %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Order.PendingWindow = getEnvDuration("ORDER_PENDING_WINDOW", cfg.App.Order.PendingWindow)
	cfg.App.Order.SweepInterval = getEnvDuration("ORDER_SWEEP_INTERVAL", cfg.App.Order.SweepInterval)
	cfg.App.Alipay.AppID = getEnv("ALIPAY_APP_ID", cfg.App.Alipay.AppID)
	cfg.App.Alipay.Production = getEnv("ALIPAY_PRODUCTION", strconv.FormatBool(cfg.App.Alipay.Production)) == "true"
	cfg.App.Alipay.PrivateKey = getEnv("ALIPAY_PRIVATE_KEY", cfg.App.Alipay.PrivateKey)
	cfg.App.Alipay.AlipayPublicKey = getEnv("ALIPAY_PUBLIC_KEY", cfg.App.Alipay.AlipayPublicKey)
	cfg.App.Alipay.NotifyURL = getEnv("ALIPAY_NOTIFY_URL", cfg.App.Alipay.NotifyURL)
	cfg.App.Alipay.ReturnURL = getEnv("ALIPAY_RETURN_URL", cfg.App.Alipay.ReturnURL)

	db := &cfg.Infra.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.DSN = getEnv("DB_DSN", db.DSN)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvInt("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)

	cfg.Infra.Redis.Addrs = getEnvList("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	cfg.Infra.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Zookeeper.Servers = getEnvList("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
}

// Validate 检查无法回退默认值的配置项
func (c *Config) Validate() error {
	if c.App.Order.PendingWindow <= 0 {
		return errors.New("app.order.pendingWindow must be positive")
	}
	if c.App.Order.SweepInterval <= 0 {
		return errors.New("app.order.sweepInterval must be positive")
	}
	if c.App.Order.TomatoRate <= 0 {
		return errors.New("app.order.tomatoRate must be positive")
	}
	if c.App.Settlement.CommitMaxAttempts <= 0 {
		return errors.New("app.settlement.commitMaxAttempts must be positive")
	}
	switch c.Infra.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Errorf("unsupported database driver %q", c.Infra.Database.Driver)
	}
	return nil
}

// getEnv 从环境变量中读取配置，不存在时使用 fallback
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
