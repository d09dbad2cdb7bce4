package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("缺省配置应可加载: %v", err)
	}

	if cfg.ListenPort != 8000 {
		t.Fatalf("默认端口应为 8000，得到 %d", cfg.ListenPort)
	}
	if cfg.SecretKey != "default-secret" {
		t.Fatalf("默认密钥不符: %s", cfg.SecretKey)
	}
	if cfg.PresignExpiry.DurationValue() != 300*time.Second {
		t.Fatalf("默认有效期应为 300s，得到 %v", cfg.PresignExpiry.DurationValue())
	}
	if !filepath.IsAbs(cfg.UploadDir) || !filepath.IsAbs(cfg.CacheDir) {
		t.Fatalf("目录应解析为绝对路径: %s / %s", cfg.UploadDir, cfg.CacheDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
ListenPort = 9090
LogLevel = "debug"
UploadDir = "./img"
CacheDir = "./img-cache"
SecretKey = "s3cret"
PresignExpiry = "10m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.ListenPort != 9090 {
		t.Fatalf("端口应为 9090，得到 %d", cfg.ListenPort)
	}
	if cfg.PresignExpiry.DurationValue() != 10*time.Minute {
		t.Fatalf("Duration 字符串解析失败: %v", cfg.PresignExpiry.DurationValue())
	}
	if cfg.SecretMode() != "custom" {
		t.Fatalf("自定义密钥应标记为 custom")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("PRESIGNED_EXPIRATION", "600")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.ListenPort != 7070 {
		t.Fatalf("PORT 环境变量未生效: %d", cfg.ListenPort)
	}
	if cfg.SecretKey != "env-secret" {
		t.Fatalf("SECRET_KEY 环境变量未生效: %s", cfg.SecretKey)
	}
	if cfg.PresignExpiry.DurationValue() != 600*time.Second {
		t.Fatalf("PRESIGNED_EXPIRATION 未按秒解析: %v", cfg.PresignExpiry.DurationValue())
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeTempConfig(t, `PresignExpiry = "boom"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestValidateFieldErrors(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"bad port", Config{ListenPort: -1, UploadDir: "a", CacheDir: "b", SecretKey: "s", PresignExpiry: Duration(time.Second), MaxUploadSize: 1}, "ListenPort"},
		{"same dirs", Config{ListenPort: 80, UploadDir: "a", CacheDir: "a", SecretKey: "s", PresignExpiry: Duration(time.Second), MaxUploadSize: 1}, "CacheDir"},
		{"empty secret", Config{ListenPort: 80, UploadDir: "a", CacheDir: "b", PresignExpiry: Duration(time.Second), MaxUploadSize: 1}, "SecretKey"},
		{"zero expiry", Config{ListenPort: 80, UploadDir: "a", CacheDir: "b", SecretKey: "s", MaxUploadSize: 1}, "PresignExpiry"},
	}

	for _, tc := range cases {
		err := tc.cfg.Validate()
		var fieldErr FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("%s: 期望 FieldError，得到 %v", tc.name, err)
		}
		if fieldErr.Field != tc.field {
			t.Fatalf("%s: 期望字段 %s，得到 %s", tc.name, tc.field, fieldErr.Field)
		}
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90")); err != nil {
		t.Fatalf("纯秒整数应可解析: %v", err)
	}
	if d.DurationValue() != 90*time.Second {
		t.Fatalf("期望 90s，得到 %v", d.DurationValue())
	}

	if err := d.UnmarshalText([]byte("2h")); err != nil {
		t.Fatalf("Duration 字符串应可解析: %v", err)
	}
	if d.DurationValue() != 2*time.Hour {
		t.Fatalf("期望 2h，得到 %v", d.DurationValue())
	}

	if err := d.UnmarshalText([]byte("boom")); err == nil {
		t.Fatalf("非法值应报错")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}
