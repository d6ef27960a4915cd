package as3client

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/sapcc/f5agent/internal/observability"
)

// logExchange logs one request/response pair at debug level. URLs are
// redacted, JSON bodies are pretty-printed, and a malformed JSON body
// is reported without failing the operation.
func (c *Client) logExchange(method, rawURL string, reqBody []byte, resp *Response) {
	logger := c.logger.With(
		observability.String("request_id", uuid.New().String()),
		observability.String("method", method),
		observability.String("url", redactURL(rawURL)),
	)

	if len(reqBody) > 0 {
		logger.Debug("request body", observability.String("body", prettyJSON(logger, reqBody)))
	}

	logger.Debug("response",
		observability.Int("status", resp.StatusCode),
	)

	if len(resp.Body) == 0 {
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		logger.Debug("response body", observability.String("body", prettyJSON(logger, resp.Body)))
	} else {
		logger.Debug("response body", observability.String("body", string(resp.Body)))
	}
}

// prettyJSON indents a JSON body for logging. A decode failure is
// logged and the raw text returned; it never breaks the operation.
func prettyJSON(logger observability.Logger, body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		logger.Debug("failed to decode JSON body", observability.Error(err))
		return string(body)
	}
	return buf.String()
}
