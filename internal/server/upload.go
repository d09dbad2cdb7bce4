package server

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/pixserve/pixserve/internal/presign"
)

// uploadedFile 描述单个文件的入库结果，filename 为归一化后的存储名。
type uploadedFile struct {
	OriginalName string `json:"originalName"`
	Filename     string `json:"filename"`
}

// handleUpload 处理 POST /upload：先做预签名校验，再把每个文件归一化为
// WebP 落盘。批次中任何一个文件失败都会中止剩余文件并返回首个错误。
func (h *handler) handleUpload(c fiber.Ctx) error {
	key := c.Query("key")
	expires := c.Query("expires")
	signature := c.Query("signature")

	if key == "" || expires == "" || signature == "" {
		return renderError(c, fiber.StatusBadRequest, "invalid_request")
	}

	if err := presign.Verify(h.cfg.SecretKey, key, expires, signature, time.Now()); err != nil {
		h.logger.WithFields(logrus.Fields{
			"action":     "upload_auth",
			"key":        key,
			"request_id": RequestID(c),
		}).Warn(err.Error())
		return renderTypedError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_request")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return renderError(c, fiber.StatusBadRequest, "invalid_request")
	}

	uploaded := make([]uploadedFile, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return renderTypedError(c, err)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return renderTypedError(c, err)
		}

		storedID, err := h.assets.Save(fh.Filename, data)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"action":     "upload_save",
				"file":       fh.Filename,
				"request_id": RequestID(c),
			}).Error(err.Error())
			return renderTypedError(c, err)
		}

		uploaded = append(uploaded, uploadedFile{
			OriginalName: fh.Filename,
			Filename:     storedID,
		})
	}

	h.logger.WithFields(logrus.Fields{
		"action":     "upload",
		"count":      len(uploaded),
		"key":        key,
		"request_id": RequestID(c),
	}).Info("upload complete")

	return c.JSON(fiber.Map{
		"message": "upload complete",
		"files":   uploaded,
	})
}
