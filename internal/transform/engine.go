package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// 注册解码器：缩放入口接受 jpeg/png/gif/webp 等常见格式。
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// 固定输出格式：所有派生图与归一化后的原图统一编码为 WebP。
const (
	Extension   = ".webp"
	ContentType = "image/webp"
)

var (
	// ErrInvalidDimension 表示目标宽度不是正整数。
	ErrInvalidDimension = errors.New("invalid target dimension")
	// ErrDecode 表示输入字节无法解码为图片。
	ErrDecode = errors.New("image decode failed")
	// ErrEncode 表示输出编码阶段失败。
	ErrEncode = errors.New("image encode failed")
)

// Dimensions 读取图片头部返回固有宽高，不做完整解码。
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Resize 将输入图片等比缩放到目标宽度并编码为 WebP。纯函数，无 I/O 副作用；
// “宽度不小于原图时不缩放”的策略由调用方负责，这里只拒绝非正数宽度。
func Resize(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, width)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	resized := imaging.Resize(img, width, 0, imaging.Lanczos)
	return encodeWebP(resized)
}

// Normalize 保持尺寸不变，把任意输入格式重编码为 WebP，用于上传入库。
func Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return encodeWebP(img)
}

func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
