package server

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/pixserve/pixserve/internal/assets"
	"github.com/pixserve/pixserve/internal/config"
	"github.com/pixserve/pixserve/internal/derive"
	"github.com/pixserve/pixserve/internal/presign"
)

const testSecret = "secret"

type testApp struct {
	*fiber.App
	store    assets.Store
	cacheDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		ListenPort:    8000,
		SecretKey:     testSecret,
		MaxUploadSize: 32 * 1024 * 1024,
	}

	store, err := assets.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create asset store: %v", err)
	}

	cacheDir := t.TempDir()
	cache, err := derive.NewCache(store, cacheDir)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger: logger,
		Config: cfg,
		Assets: store,
		Cache:  cache,
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	return &testApp{App: app, store: store, cacheDir: cacheDir}
}

// signedUploadURL 构造带合法预签名参数的上传地址。
func signedUploadURL(key string, expires int64) string {
	sig := presign.Sign(testSecret, key, expires)
	return fmt.Sprintf("/upload?key=%s&expires=%d&signature=%s", key, expires, sig)
}

// multipartBody 以 images 字段打包多个文件，返回请求体与 Content-Type。
func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y * 3), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func uploadPNG(t *testing.T, app *testApp, name string, width, height int) {
	t.Helper()

	body, contentType := multipartBody(t, map[string][]byte{name: pngBytes(t, width, height)})
	req := httptest.NewRequest("POST", signedUploadURL("key1", time.Now().Add(time.Hour).Unix()), body)
	req.Header.Set("Content-Type", contentType)

	resp := doRequest(t, app.App, req)
	if resp.StatusCode != fiber.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload failed with %d: %s", resp.StatusCode, string(payload))
	}
}
