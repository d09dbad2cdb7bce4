// prefetch 批量拉取原图到上传目录：逐行读取清单文件（形如
// `poster/abc.jpg`），跳过本地已存在的文件，其余从上游按原始文件名下载。
// 下载的是未归一化的原始字节，归一化仍发生在上传入口。
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

func main() {
	var (
		listPath string
		destDir  string
		baseURL  string
	)

	flag.StringVar(&listPath, "list", "images.txt", "图片清单文件，每行一个 <dir>/<name>")
	flag.StringVar(&destDir, "dest", "./uploads", "下载目标目录")
	flag.StringVar(&baseURL, "base-url", "https://image.tmdb.org/t/p/original", "上游基础地址")
	flag.Parse()

	if err := run(listPath, destDir, baseURL); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(listPath, destDir, baseURL string) error {
	raw, err := os.ReadFile(listPath)
	if err != nil {
		return fmt.Errorf("读取清单失败: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("创建目标目录失败: %w", err)
	}

	client := &http.Client{
		Timeout:   60 * time.Second,
		Transport: defaultTransport.Clone(),
	}

	for _, name := range parseImageList(string(raw)) {
		dest := filepath.Join(destDir, name)
		if _, err := os.Stat(dest); err == nil {
			fmt.Printf("%s 已存在，跳过\n", name)
			continue
		}

		if err := download(client, baseURL+"/"+name, dest); err != nil {
			fmt.Fprintf(os.Stderr, "下载失败 %s: %v\n", name, err)
			continue
		}
		fmt.Printf("%s 下载完成\n", name)
	}

	return nil
}

// parseImageList 取每行第二段作为文件名，容忍空行与 CRLF 行尾。
func parseImageList(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "/", 2)
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		names = append(names, parts[1])
	}
	return names
}

// download 写入临时文件后 rename，避免中断留下半截文件。
func download(client *http.Client, url, dest string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("上游返回 %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(dest), ".prefetch-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = io.Copy(tempFile, resp.Body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, dest); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
