// Package sourcemap uploads RUM sourcemaps to a running apm-server.
package sourcemap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Upload describes one sourcemap upload. All fields except SecretToken
// are required; the upload-sourcemap command resolves defaults from the
// running containers before building one of these.
type Upload struct {
	ServerURL      string
	ServiceName    string
	ServiceVersion string
	BundlePath     string
	File           string
	SecretToken    string
}

// Do posts the sourcemap as a multipart form to the apm-server intake
// endpoint.
func (u Upload) Do(ctx context.Context, client *http.Client) error {
	if client == nil {
		client = http.DefaultClient
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"service_name":    u.ServiceName,
		"service_version": u.ServiceVersion,
		"bundle_filepath": u.BundlePath,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return err
		}
	}

	file, err := os.Open(u.File)
	if err != nil {
		return fmt.Errorf("failed to open sourcemap: %w", err)
	}
	defer file.Close()
	part, err := form.CreateFormFile("sourcemap", filepath.Base(u.File))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.ServerURL+"/v1/client-side/sourcemaps", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if u.SecretToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.SecretToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sourcemap upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sourcemap upload failed: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
