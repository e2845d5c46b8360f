package utils

import (
	"net/http"
	"strings"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
	Meta      interface{} `json:"meta,omitempty"`
}

// ErrorResponse represents an error response with request context
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	Code      int         `json:"code"`
	Key       string      `json:"key,omitempty"`
	Timestamp string      `json:"timestamp"`
	Request   RequestInfo `json:"request"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// RequestInfo provides context about the failed request
type RequestInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, data interface{}) {
	sendData(c, http.StatusOK, data, nil)
}

// SendCreated sends a 201 response
func SendCreated(c *gin.Context, data interface{}) {
	sendData(c, http.StatusCreated, data, nil)
}

// SendSuccessWithMeta sends a successful response with metadata
func SendSuccessWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	sendData(c, http.StatusOK, data, meta)
}

func sendData(c *gin.Context, status int, data interface{}, meta interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendError sends an error response with request context
func SendError(c *gin.Context, statusCode int, message string) {
	sendError(c, newErrorResponse(c, statusCode, message))
}

// SendAppError sends err with its status code, reason key and details
func SendAppError(c *gin.Context, err *errors.AppError) {
	resp := newErrorResponse(c, err.Code, err.Message)
	resp.Key = err.Key
	if err.Details != "" {
		resp.Details = err.Details
	}
	sendError(c, resp)
}

func newErrorResponse(c *gin.Context, statusCode int, message string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      statusCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Request: RequestInfo{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
		},
		RequestID: c.GetString("request_id"),
	}
}

func sendError(c *gin.Context, resp ErrorResponse) {
	if resp.Details == nil {
		switch resp.Code {
		case http.StatusNotFound:
			if suggestions := generateNotFoundSuggestions(c.Request.URL.Path); len(suggestions) > 0 && c.FullPath() == "" {
				resp.Details = map[string]interface{}{
					"suggestions": suggestions,
					"message":     "The requested endpoint does not exist. Check the suggestions below for similar endpoints.",
				}
			}
		case http.StatusMethodNotAllowed:
			resp.Details = map[string]interface{}{
				"message": "The HTTP method is not supported for this endpoint.",
			}
		}
	}
	c.JSON(resp.Code, resp)
}

// generateNotFoundSuggestions lists known endpoints sharing a path segment
// with path
func generateNotFoundSuggestions(path string) []string {
	endpoints := []string{
		"/health",
		"/api/v1/devices",
		"/api/v1/services/notify",
		"/api/v1/services/notify_fixed",
		"/api/v1/services/clear_fixed",
		"/api/v1/discovery",
		"/metrics",
		"/ws",
	}

	pathLower := strings.ToLower(path)
	var suggestions []string
	for _, endpoint := range endpoints {
		for _, segment := range strings.Split(strings.Trim(endpoint, "/"), "/") {
			if segment == "api" || segment == "v1" {
				continue
			}
			if strings.Contains(pathLower, strings.TrimSuffix(segment, "s")) {
				suggestions = append(suggestions, endpoint)
				break
			}
		}
		if len(suggestions) == 5 {
			break
		}
	}
	return suggestions
}
