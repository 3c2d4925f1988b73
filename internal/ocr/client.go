// Package ocr is the HTTP client for the OCR collaborator service. The
// engine sends one request per document and never retries; retry policy
// belongs to the caller.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Recognize uploads a scanned invoice (PDF or image) and returns the
// recognized text with per-page barcode payloads.
func (c *Client) Recognize(ctx context.Context, filename string, data []byte) (*entity.RawDocument, error) {
	if len(data) == 0 {
		return nil, common.NewAppError(common.CodeInvalidInput, "empty document upload", nil)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to build upload body", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to build upload body", err)
	}
	if err := mw.Close(); err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to build upload body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to build OCR request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.NewAppError(common.CodeOCR, "OCR service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, common.NewAppError(common.CodeOCR,
			fmt.Sprintf("OCR service returned %d: %s", resp.StatusCode, msg), nil)
	}

	var doc entity.RawDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, common.NewAppError(common.CodeOCR, "invalid OCR response", err)
	}

	c.logger.Info("ocr.done",
		"filename", filename,
		"text_len", len(doc.Text),
		"confidence", doc.Confidence,
		"elapsed", time.Since(start))
	return &doc, nil
}
