package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
	"github.com/stormloop-dev/stormloop/pkg/report"
)

// Artifact is one exported report file.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// GetFinalReport fetches the server-assembled final report of a completed
// session.
func (c *Client) GetFinalReport(ctx context.Context, sessionID int) (*report.FinalReport, error) {
	var fr report.FinalReport
	if err := c.do(ctx, "GET", fmt.Sprintf("/sessions/%d/report", sessionID), nil, &fr, apperrors.ErrCodeExport); err != nil {
		return nil, err
	}
	return &fr, nil
}

// ExportReport asks the server to render the session's final report and
// returns the file. The response is the raw document, not the JSON envelope.
func (c *Client) ExportReport(ctx context.Context, sessionID int, opts report.ExportOptions) (*Artifact, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/sessions/%d/export?format=%s&template=%s",
		sessionID, string(opts.Format), string(opts.Template))
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to create request", err)
	}
	c.addAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.New(apperrors.ErrCodeExport,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to read export body", err)
	}

	art := &Artifact{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
		FileName:    opts.DefaultFileName(sessionID),
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			art.FileName = params["filename"]
		}
	}
	return art, nil
}
