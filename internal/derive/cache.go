// Package derive implements the resize-and-cache subsystem: it maps an
// original asset plus a requested width to a lazily computed, durably
// cached WebP rendition. Derived files are published with temp file +
// rename so concurrent misses for the same key never expose partial
// writes; the hit test is bare file existence, so overwriting a source
// in place does NOT invalidate previously derived variants (known
// staleness limitation, cache growth is monotonic).
package derive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pixserve/pixserve/internal/assets"
	"github.com/pixserve/pixserve/internal/transform"
)

// Result 描述一次 GetOrCreate 的产出：待响应的文件位置与命中信息。
type Result struct {
	// FilePath 为最终应当响应的文件绝对路径（原图或派生图）。
	FilePath string
	// IsOriginal 表示本次直接返回原图（未指定宽度或宽度不小于原图）。
	IsOriginal bool
	// CacheHit 表示派生文件在请求前已存在，本次未触发重新计算。
	CacheHit bool
	// Width 为实际生效的目标宽度；返回原图时为 0。
	Width int
}

// Cache 独占派生图存储树的写入权；调用方只通过 GetOrCreate 读取。
type Cache struct {
	store assets.Store
	root  string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewCache 以 cacheRoot 为根目录构建派生缓存，整个进程复用一份实例。
func NewCache(store assets.Store, cacheRoot string) (*Cache, error) {
	if store == nil {
		return nil, errors.New("asset store required")
	}
	if cacheRoot == "" {
		return nil, errors.New("cache path required")
	}

	abs, err := filepath.Abs(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache path: %w", err)
	}

	return &Cache{
		store: store,
		root:  abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// GetOrCreate 解析原图并返回请求宽度对应的渲染结果。width <= 0 视为未指定。
//
// 同一 (source, width) 的并发未命中由进程内 per-key 锁串行化；跨进程竞争
// 依靠临时文件 + 原子 rename 收敛，败者的 rename 只会以相同字节覆盖。
// 渲染与落盘阶段刻意不感知客户端取消：请求中断不应废弃其他并发请求
// 正在等待的写入，后续请求直接受益于已完成的缓存。
func (c *Cache) GetOrCreate(ctx context.Context, sourceID string, width int) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	sourcePath, err := c.store.Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	data, err := c.store.Read(sourceID)
	if err != nil {
		return nil, err
	}

	if width <= 0 {
		return &Result{FilePath: sourcePath, IsOriginal: true}, nil
	}

	intrinsicWidth, _, err := transform.Dimensions(data)
	if err != nil {
		return nil, err
	}

	// 宽度等于原图同样走原图路径（>= 而非 >），不为原尺寸生成派生文件。
	if width >= intrinsicWidth {
		return &Result{FilePath: sourcePath, IsOriginal: true}, nil
	}

	rel, err := derivedID(sourceID, width)
	if err != nil {
		return nil, err
	}
	derivedPath := filepath.Join(c.root, filepath.FromSlash(rel))

	if fileExists(derivedPath) {
		return &Result{FilePath: derivedPath, CacheHit: true, Width: width}, nil
	}

	unlock := c.lockEntry(rel)
	defer unlock()

	// 拿到锁后重查：并发请求可能已经完成渲染。
	if fileExists(derivedPath) {
		return &Result{FilePath: derivedPath, CacheHit: true, Width: width}, nil
	}

	rendered, err := transform.Resize(data, width)
	if err != nil {
		return nil, err
	}

	if err := publish(derivedPath, rendered); err != nil {
		return nil, err
	}

	return &Result{FilePath: derivedPath, Width: width}, nil
}

// publish 将渲染结果写入唯一临时文件后原子 rename 到最终路径，
// 保证读者永远观察不到写了一半的派生文件。
func publish(derivedPath string, data []byte) error {
	dir := filepath.Dir(derivedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".render-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, derivedPath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

// derivedID 计算派生图的确定性标识：与原图同级目录，文件名去扩展名后
// 追加 `_<width>`，固定 WebP 扩展。路径镜像完整相对路径，天然避免
// 不同原图之间的派生文件冲突。
func derivedID(sourceID string, width int) (string, error) {
	rel, err := assets.CleanID(sourceID)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	name := fmt.Sprintf("%s_%d%s", base, width, transform.Extension)

	if dir := path.Dir(rel); dir != "." {
		return dir + "/" + name, nil
	}
	return name, nil
}

func (c *Cache) lockEntry(key string) func() {
	c.mu.Lock()
	lock := c.locks[key]
	if lock == nil {
		lock = &entryLock{}
		c.locks[key] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

func fileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}
