package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pixserve/pixserve/internal/transform"
)

// NewStore 以 root 为根目录构建原图存储，整个进程复用一份实例。
func NewStore(root string) (Store, error) {
	if root == "" {
		return nil, errors.New("upload path required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload path: %w", err)
	}

	return &fileStore{root: abs}, nil
}

type fileStore struct {
	root string
}

func (s *fileStore) Resolve(id string) (string, error) {
	rel, err := CleanID(id)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(s.root, filepath.FromSlash(rel))
	if filePath != s.root && !strings.HasPrefix(filePath, s.root+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return filePath, nil
}

func (s *fileStore) Exists(id string) bool {
	filePath, err := s.Resolve(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

func (s *fileStore) Read(id string) ([]byte, error) {
	filePath, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *fileStore) Save(name string, data []byte) (string, error) {
	rel, err := CleanID(name)
	if err != nil {
		return "", err
	}

	// 归一化只发生在入库时刻：非 WebP 输入先重编码，扩展名随之替换。
	if !strings.EqualFold(path.Ext(rel), transform.Extension) {
		normalized, err := transform.Normalize(data)
		if err != nil {
			return "", err
		}
		data = normalized
		rel = strings.TrimSuffix(rel, path.Ext(rel)) + transform.Extension
	}

	filePath, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return "", err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return "", err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return "", err
	}

	return rel, nil
}

// CleanID 规范化相对标识并显式拒绝任何 ".." 段，越界不做静默纠正。
// 派生缓存复用同一套校验，路径逃逸判断集中在本包。
func CleanID(id string) (string, error) {
	slashed := strings.ReplaceAll(id, "\\", "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}

	rel := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if rel == "" || rel == "." {
		return "", ErrInvalidPath
	}
	return rel, nil
}
