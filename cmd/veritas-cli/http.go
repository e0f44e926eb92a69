package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goahttp "goa.design/goa/v3/http"

	"veritas/internal/api"
	"veritas/internal/middleware"
)

// uploadRemote posts the video to a running server and returns the pretty-printed response
func uploadRemote(server, videoPath, owner string, timeout time.Duration, debug bool) ([]byte, error) {
	var (
		doer goahttp.Doer
	)
	{
		doer = &http.Client{Timeout: timeout}
		if debug {
			doer = goahttp.NewDebugDoer(doer)
		}
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	// Stream the multipart body instead of buffering the whole video.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(api.UploadField, filepath.Base(videoPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequest(http.MethodPost, strings.TrimSuffix(server, "/")+"/api/v1/analyze", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		out.Reset()
		out.Write(body)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return out.Bytes(), fmt.Errorf("server returned %s: %s", resp.Status, out.String())
	}
	return out.Bytes(), nil
}
