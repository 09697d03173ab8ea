package httputil

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// InternalAuthHeader carries the shared API key on bridge endpoints
const InternalAuthHeader = "X-Internal-Auth"

// APIResponse is the response envelope for every bridge endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONResponse writes an APIResponse with the given status code
func JSONResponse(ctx *fasthttp.RequestCtx, success bool, message string, data interface{}, statusCode int) {
	body, _ := json.Marshal(APIResponse{
		Success: success,
		Message: message,
		Data:    data,
	})
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONError writes a failed response without data
func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	JSONResponse(ctx, false, message, nil, statusCode)
}

// JSONData writes a successful response carrying data
func JSONData(ctx *fasthttp.RequestCtx, data interface{}, statusCode int) {
	JSONResponse(ctx, true, "", data, statusCode)
}

// JSONResult writes data with success and message set by the caller; used when a
// request was well-formed but the operation it triggered failed.
func JSONResult(ctx *fasthttp.RequestCtx, success bool, message string, data interface{}, statusCode int) {
	JSONResponse(ctx, success, message, data, statusCode)
}

// DecodeJSONBody strictly decodes the request body into v. Unknown fields are rejected.
func DecodeJSONBody(ctx *fasthttp.RequestCtx, v interface{}) error {
	body := ctx.PostBody()
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("request body is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// CheckInternalAuth compares the X-Internal-Auth header against key in constant time
func CheckInternalAuth(ctx *fasthttp.RequestCtx, key string) bool {
	got := ctx.Request.Header.Peek(InternalAuthHeader)
	if len(got) == 0 || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare(got, []byte(key)) == 1
}
