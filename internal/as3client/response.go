package as3client

import (
	"encoding/json"
	"net/http"
)

// Response is the raw result of a delivery operation. Non-success
// statuses are returned to the caller undecided; only Info converts
// them to errors eagerly.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the response body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Task is the appliance's view of an async submission.
type Task struct {
	ID      string       `json:"id"`
	Results []TaskResult `json:"results"`
}

// TaskResult is one sub-result of a task. Code 0 means still pending;
// any non-zero code is terminal. The protocol does not distinguish
// success from failure at this layer.
type TaskResult struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Tenant  string `json:"tenant,omitempty"`
}

// Terminal reports whether every sub-result reached a terminal code.
// A task without results is not terminal.
func (t *Task) Terminal() bool {
	if len(t.Results) == 0 {
		return false
	}
	for _, r := range t.Results {
		if r.Code == 0 {
			return false
		}
	}
	return true
}

// DeviceInfo is the appliance's version payload merged with the
// locally known hostname.
type DeviceInfo struct {
	Hostname      string `json:"hostname"`
	Version       string `json:"version"`
	Release       string `json:"release"`
	SchemaCurrent string `json:"schemaCurrent"`
	SchemaMinimum string `json:"schemaMinimum"`
}
