package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ImageFields 提供 source/width/命中状态字段，供图片请求日志复用。
func ImageFields(source string, width int, cacheHit, original bool) logrus.Fields {
	return logrus.Fields{
		"source":    source,
		"width":     width,
		"cache_hit": cacheHit,
		"original":  original,
	}
}
