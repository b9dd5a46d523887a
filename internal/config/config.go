package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 WALLET_NETWORK_NAME。
const EnvPrefix = "WALLET"

// DefaultPath 是未设置 WALLET_CONFIG 时读取的配置文件。
const DefaultPath = "configs/wallet.json"

// Config 描述了钱包进程在启动阶段需要加载的核心配置。
type Config struct {
	Server      ServerConfig      `json:"server"`
	Network     NetworkConfig     `json:"network"`
	Completion  CompletionConfig  `json:"completion"`
	AddressBook AddressBookConfig `json:"address_book" split_words:"true"`
	Credential  CredentialConfig  `json:"credential"`
	Queue       QueueConfig       `json:"queue"`
	Journal     JournalConfig     `json:"journal"`
	Logging     LoggingConfig     `json:"logging"`
	Alerting    AlertingConfig    `json:"alerting"`
	Runtime     RuntimeConfig     `json:"runtime"`
}

// ServerConfig 控制 HTTP API 的监听地址。AuthToken 只能通过环境变量提供。
type ServerConfig struct {
	Address         string `json:"address"`
	AuthToken       string `json:"-" split_words:"true"`
	ShutdownSeconds int    `json:"shutdown_seconds" split_words:"true"`
}

// NetworkConfig 描述要连接的 Sui 网络。
type NetworkConfig struct {
	Name            string `json:"name"`
	DefinitionsFile string `json:"definitions_file" split_words:"true"`
	RPCURL          string `json:"rpc_url" split_words:"true"`
	FaucetURL       string `json:"faucet_url" split_words:"true"`
	TimeoutSeconds  int    `json:"timeout_seconds" split_words:"true"`
}

// CompletionConfig 配置自然语言补全服务。APIKey 不允许写入配置文件。
type CompletionConfig struct {
	Provider       string             `json:"provider"`
	BaseURL        string             `json:"base_url" split_words:"true"`
	Model          string             `json:"model"`
	APIKey         string             `json:"-" split_words:"true"`
	TimeoutSeconds int                `json:"timeout_seconds" split_words:"true"`
	Python         PythonBridgeConfig `json:"python_bridge"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成补全时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `json:"python_executable" split_words:"true"`
	ScriptPath       string `json:"script_path" split_words:"true"`
	WorkingDir       string `json:"working_dir" split_words:"true"`
}

// AddressBookConfig 指定地址簿文件以及内联别名。
type AddressBookConfig struct {
	Path    string            `json:"path"`
	Entries map[string]string `json:"entries"`
}

// CredentialConfig 配置通行密钥提供者。Password 只能来自环境变量或终端输入。
type CredentialConfig struct {
	Provider     string `json:"provider"`
	KeystorePath string `json:"keystore_path" split_words:"true"`
	Password     string `json:"-"`
	RPID         string `json:"rp_id"`
	Origin       string `json:"origin"`
}

// QueueConfig 配置命令队列。
type QueueConfig struct {
	Driver        string `json:"driver"`
	Buffer        int    `json:"buffer"`
	RedisAddr     string `json:"redis_addr" split_words:"true"`
	RedisPassword string `json:"-" split_words:"true"`
	RedisDB       int    `json:"redis_db" split_words:"true"`
	RedisKey      string `json:"redis_key" split_words:"true"`
	RabbitURL     string `json:"-" split_words:"true"`
	RabbitQueue   string `json:"rabbit_queue" split_words:"true"`
}

// JournalConfig 配置命令日志的存储后端。
type JournalConfig struct {
	Driver          string `json:"driver"`
	DSN             string `json:"-"`
	Dir             string `json:"dir"`
	MaxOpenConns    int    `json:"max_open_conns" split_words:"true"`
	MaxIdleConns    int    `json:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds" split_words:"true"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format"`
	Outputs []string    `json:"outputs"`
	Audit   AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb" split_words:"true"`
	MaxBackups int    `json:"max_backups" split_words:"true"`
	MaxAgeDays int    `json:"max_age_days" split_words:"true"`
}

// AlertingConfig 配置指令失败告警。WebhookURL 可能带有令牌，只能通过环境变量提供。
type AlertingConfig struct {
	WebhookURL  string `json:"-" split_words:"true"`
	MinSeverity string `json:"min_severity" split_words:"true"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" split_words:"true"`
}

// PathFromEnv 返回 WALLET_CONFIG 指定的路径，未设置时返回默认路径。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Load 解析指定路径的 JSON 配置文件，再用环境变量覆盖。
// 默认路径不存在时直接使用默认值。
func Load(path string) (*Config, error) {
	var cfg Config
	baseDir := "."

	if path != "" {
		content, err := readFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(content, &cfg); err != nil {
				return nil, fmt.Errorf("解析配置失败: %w", err)
			}
			baseDir = filepath.Dir(path)
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		default:
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return content, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 5
	}

	if c.Network.Name == "" {
		c.Network.Name = "testnet"
	}
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = 30
	}
	c.Network.DefinitionsFile = resolvePath(baseDir, c.Network.DefinitionsFile)

	if c.Completion.Provider == "" {
		c.Completion.Provider = "none"
	}
	if c.Completion.TimeoutSeconds <= 0 {
		c.Completion.TimeoutSeconds = 10
	}
	if c.Completion.Python.PythonExecutable == "" {
		c.Completion.Python.PythonExecutable = "python3"
	}
	if c.Completion.Python.WorkingDir == "" {
		c.Completion.Python.WorkingDir = baseDir
	} else {
		c.Completion.Python.WorkingDir = resolvePath(baseDir, c.Completion.Python.WorkingDir)
	}
	c.Completion.Python.ScriptPath = resolvePath(baseDir, c.Completion.Python.ScriptPath)

	c.AddressBook.Path = resolvePath(baseDir, c.AddressBook.Path)

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolvePath(baseDir, c.Runtime.DataDir)
	}

	if c.Credential.Provider == "" {
		c.Credential.Provider = "softkey"
	}
	if c.Credential.KeystorePath == "" {
		c.Credential.KeystorePath = filepath.Join(c.Runtime.DataDir, "passkey.json")
	} else {
		c.Credential.KeystorePath = resolvePath(baseDir, c.Credential.KeystorePath)
	}
	if c.Credential.RPID == "" {
		c.Credential.RPID = "localhost"
	}
	if c.Credential.Origin == "" {
		c.Credential.Origin = "http://localhost:5173"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 64
	}
	if c.Queue.RedisKey == "" {
		c.Queue.RedisKey = "wallet:commands"
	}
	if c.Queue.RabbitQueue == "" {
		c.Queue.RabbitQueue = "wallet.commands"
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = filepath.Join(c.Runtime.DataDir, "journal")
	} else {
		c.Journal.Dir = resolvePath(baseDir, c.Journal.Dir)
	}
	if c.Journal.Driver == "sqlite" && c.Journal.DSN == "" {
		c.Journal.DSN = filepath.Join(c.Journal.Dir, "commands.db")
	}

	if c.Alerting.MinSeverity == "" {
		c.Alerting.MinSeverity = "warning"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

// Validate 检查互相依赖的配置项。
func (c *Config) Validate() error {
	switch c.Completion.Provider {
	case "none", "openai", "gemini", "python_bridge":
	default:
		return fmt.Errorf("不支持的补全服务 %q", c.Completion.Provider)
	}
	if c.Completion.Provider == "gemini" && c.Completion.APIKey == "" {
		return errors.New("gemini 补全服务需要设置 WALLET_COMPLETION_API_KEY")
	}
	if c.Completion.Provider == "python_bridge" && c.Completion.Python.ScriptPath == "" {
		return errors.New("python_bridge 补全服务需要配置 script_path")
	}
	switch c.Queue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("不支持的队列驱动 %q", c.Queue.Driver)
	}
	switch c.Alerting.MinSeverity {
	case "info", "warning", "critical":
	default:
		return fmt.Errorf("不支持的告警级别 %q", c.Alerting.MinSeverity)
	}
	switch c.Journal.Driver {
	case "memory", "file", "sqlite":
	case "mysql", "postgres":
		if strings.TrimSpace(c.Journal.DSN) == "" {
			return fmt.Errorf("%s 日志存储需要通过 WALLET_JOURNAL_DSN 提供 DSN", c.Journal.Driver)
		}
	default:
		return fmt.Errorf("不支持的日志存储驱动 %q", c.Journal.Driver)
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
