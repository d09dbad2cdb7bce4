package assets

import "errors"

// Store 负责管理原图（source asset）的磁盘读写。磁盘布局遵循：
//
//	<UploadDir>/<relative path>.webp    # 入库时统一归一化为 WebP
//
// 原图一经写入即视为不可变，删除只由外部运维操作完成。
type Store interface {
	// Resolve 把相对标识解析为根目录内的绝对路径；越界路径返回 ErrInvalidPath。
	Resolve(id string) (string, error)

	// Exists 判断指定标识的原图是否存在。
	Exists(id string) bool

	// Read 返回原图完整字节。不存在时返回 ErrNotFound。
	Read(id string) ([]byte, error)

	// Save 以调用方提供的名字存储上传内容；扩展名非 .webp 时先重编码为
	// WebP 再落盘（归一化只发生在入库时刻），返回实际存储的相对标识。
	// 实现需通过临时文件 + rename 保证写入原子性。
	Save(name string, data []byte) (string, error)
}

var (
	// ErrNotFound 表示原图不存在。
	ErrNotFound = errors.New("source asset not found")
	// ErrInvalidPath 表示标识试图逃逸存储根目录，必须拒绝而非纠正。
	ErrInvalidPath = errors.New("invalid asset path")
)
