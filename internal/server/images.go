package server

import (
	"context"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/pixserve/pixserve/internal/logging"
)

// handleImage 处理 GET /images/*?width=：通配路径经 URL 解码后作为原图
// 标识交给派生缓存，响应为原图或派生图的文件内容。
func (h *handler) handleImage(c fiber.Ctx) error {
	sourceID := c.Params("*")
	if decoded, err := url.PathUnescape(sourceID); err == nil {
		sourceID = decoded
	}
	if sourceID == "" {
		return renderError(c, fiber.StatusNotFound, "not_found")
	}

	width := parseWidth(c.Query("width"))

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.cache.GetOrCreate(ctx, sourceID, width)
	if err != nil {
		h.logger.WithError(err).
			WithFields(logging.ImageFields(sourceID, width, false, false)).
			Warn("image_request_failed")
		return renderTypedError(c, err)
	}

	fields := logging.ImageFields(sourceID, result.Width, result.CacheHit, result.IsOriginal)
	fields["request_id"] = RequestID(c)
	h.logger.WithFields(fields).Info("image_served")

	return c.SendFile(result.FilePath)
}

// parseWidth 把查询参数转换为目标宽度；非数字、零或负数一律视为未指定，
// 返回原图而不是报错，避免客户端输入触发无效的缩放计算。
func parseWidth(raw string) int {
	if raw == "" {
		return 0
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width < 0 {
		return 0
	}
	return width
}
