package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const defaultSecretKey = "default-secret"

// envBindings 把原有的进程环境变量映射到配置键，保证纯 env 部署可用。
var envBindings = map[string]string{
	"ListenPort":    "PORT",
	"LogLevel":      "LOG_LEVEL",
	"LogFilePath":   "LOG_FILE_PATH",
	"UploadDir":     "UPLOAD_DIR",
	"CacheDir":      "CACHE_DIR",
	"SecretKey":     "SECRET_KEY",
	"PresignExpiry": "PRESIGNED_EXPIRATION",
	"MaxUploadSize": "MAX_UPLOAD_SIZE",
}

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量绑定与校验逻辑。
// 配置文件缺省或不存在时仅依赖默认值 + 环境变量，兼容纯 env 的部署方式。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if path == "" {
		path = "config.toml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absUpload, err := filepath.Abs(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析上传目录: %w", err)
	}
	cfg.UploadDir = absUpload

	absCache, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("UploadDir", "./uploads")
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("SecretKey", defaultSecretKey)
	v.SetDefault("PresignExpiry", 300)
	v.SetDefault("MaxUploadSize", 32*1024*1024)
}

func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = 8000
	}
	if c.PresignExpiry.DurationValue() == 0 {
		c.PresignExpiry = Duration(300 * time.Second)
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 32 * 1024 * 1024
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
