package qwen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/tidwall/gjson"

	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/upstream"
)

// UploadImage stores the image behind imageURL (a base64 data: URL or an http(s)
// link) in the upstream file store and returns the handle chat messages refer to.
func (c *Client) UploadImage(ctx context.Context, imageURL, token string) (string, error) {
	data, ctype, err := c.loadImage(ctx, strings.TrimSpace(imageURL))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="image%s"`, extensionFor(ctype)))
	header.Set("Content-Type", ctype)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	resp, err := c.send(ctx, "files.upload", http.MethodPost, pathFiles, buf.Bytes(), form.FormDataContentType(), token)
	if err != nil {
		return "", err
	}
	body, err := upstream.ReadAll(resp, constants.MaxUpstreamErrorBody)
	if err != nil {
		return "", unreachable("files.upload", err)
	}
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", &RejectedError{Op: "files.upload", Status: resp.StatusCode, Body: body}
	}
	return id, nil
}

func (c *Client) loadImage(ctx context.Context, ref string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return c.fetchImage(ctx, ref)
	}
	return nil, "", fmt.Errorf("unsupported image reference scheme")
}

func (c *Client) fetchImage(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	if len(data) > constants.MaxUploadImageSize {
		return nil, "", fmt.Errorf("image exceeds %d bytes", constants.MaxUploadImageSize)
	}
	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "image/") {
		ctype = http.DetectContentType(data)
	}
	return data, ctype, nil
}

// decodeDataURL accepts only base64 payloads, the form chat clients send.
func decodeDataURL(ref string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data URL is not base64 encoded")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > constants.MaxUploadImageSize {
		return nil, "", fmt.Errorf("image exceeds %d bytes", constants.MaxUploadImageSize)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	ctype := strings.TrimSuffix(meta, ";base64")
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	return data, ctype, nil
}

func extensionFor(ctype string) string {
	switch ctype {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(ctype); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
