package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// SendPhoto uploads one photo with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoPath, caption string) error {
	fields := map[string]string{
		"chat_id": fmt.Sprintf("%d", chatID),
	}
	if caption != "" {
		fields["caption"] = caption
	}
	files := map[string]string{"photo": photoPath}
	return c.upload(ctx, "sendPhoto", fields, files)
}

type mediaItem struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// SendAlbum delivers the original and the processed result as one media
// group. When the original cannot be read the result is sent alone.
func (c *Client) SendAlbum(ctx context.Context, chatID int64, originalPath, resultPath, caption string) error {
	if _, err := os.Stat(originalPath); err != nil {
		return c.SendPhoto(ctx, chatID, resultPath, caption)
	}

	media := []mediaItem{
		{Type: "photo", Media: "attach://original", Caption: caption},
		{Type: "photo", Media: "attach://processed"},
	}
	encoded, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("encode media group: %w", err)
	}

	fields := map[string]string{
		"chat_id": fmt.Sprintf("%d", chatID),
		"media":   string(encoded),
	}
	files := map[string]string{
		"original":  originalPath,
		"processed": resultPath,
	}
	return c.upload(ctx, "sendMediaGroup", fields, files)
}

// DownloadFile resolves a file id via getFile and fetches its content into
// destDir. The saved name carries a temp_ prefix so cleanup can identify it.
func (c *Client) DownloadFile(ctx context.Context, fileID, destDir string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("file_id", fileID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.methodURL("getFile")+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build getFile request: %w", err)
	}
	raw, err := c.do(req, "get file")
	if err != nil {
		return "", err
	}

	var info struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("decode getFile result: %w", err)
	}
	if info.FilePath == "" {
		return "", fmt.Errorf("getFile result missing file path")
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, c.sendTimeout)
	defer cancelFetch()

	fetch, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.fileURL(info.FilePath), nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(fetch)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("download returned %d", resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure download dir: %w", err)
	}
	target := filepath.Join(destDir, "temp_"+filepath.Base(info.FilePath))
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create download target: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close download: %w", err)
	}
	return target, nil
}

func (c *Client) upload(ctx context.Context, method string, fields, files map[string]string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write field %s: %w", key, err)
		}
	}
	for key, path := range files {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open upload %s: %w", path, err)
		}
		part, err := writer.CreateFormFile(key, filepath.Base(path))
		if err != nil {
			file.Close()
			return fmt.Errorf("create form file %s: %w", key, err)
		}
		if _, err := io.Copy(part, file); err != nil {
			file.Close()
			return fmt.Errorf("copy upload %s: %w", path, err)
		}
		file.Close()
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.do(req, method)
	return err
}
