package config

import "errors"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.UploadDir == "" {
		return newFieldError("UploadDir", "不能为空")
	}
	if c.CacheDir == "" {
		return newFieldError("CacheDir", "不能为空")
	}
	if c.UploadDir == c.CacheDir {
		return newFieldError("CacheDir", "不能与 UploadDir 相同")
	}
	if c.SecretKey == "" {
		return newFieldError("SecretKey", "不能为空")
	}
	if c.PresignExpiry.DurationValue() <= 0 {
		return newFieldError("PresignExpiry", "必须大于 0")
	}
	if c.MaxUploadSize <= 0 {
		return newFieldError("MaxUploadSize", "必须大于 0")
	}

	return nil
}
