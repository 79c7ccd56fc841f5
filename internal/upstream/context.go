package upstream

import (
	"io"
	"net/http"
)

// ReadAll 读取响应体（最多 limit 字节，limit<=0 表示不限制），读取完成后自动关闭。
func ReadAll(resp *http.Response, limit int64) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// StatusClass labels a response outcome for metrics.
func StatusClass(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	switch resp.StatusCode / 100 {
	case 2:
		return "2xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	default:
		return "other"
	}
}
