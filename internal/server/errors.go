package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"example.com/staticserve/internal/logger"
)

// jsonMarshalFunc allows swapping out json.Marshal for testing.
var jsonMarshalFunc = json.Marshal

// ErrorDetail represents the inner structure of a JSON error response.
type ErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorResponseJSON represents the full JSON error response body.
type ErrorResponseJSON struct {
	Error ErrorDetail `json:"error"`
}

// defaultHTMLMessages maps HTTP status codes to their default HTML messages.
// Messages never include filesystem paths or internal detail.
var defaultHTMLMessages = map[int]struct {
	Title   string
	Heading string
	Message string
}{
	http.StatusNotFound: {
		Title:   "404 Not Found",
		Heading: "Not Found",
		Message: "The requested resource was not found on this server.",
	},
	http.StatusForbidden: {
		Title:   "403 Forbidden",
		Heading: "Forbidden",
		Message: "You do not have permission to access this resource.",
	},
	http.StatusMethodNotAllowed: {
		Title:   "405 Method Not Allowed",
		Heading: "Method Not Allowed",
		Message: "The method specified in the request is not allowed for this resource.",
	},
	http.StatusRequestedRangeNotSatisfiable: {
		Title:   "416 Range Not Satisfiable",
		Heading: "Range Not Satisfiable",
		Message: "The requested byte range cannot be satisfied for this resource.",
	},
	http.StatusInternalServerError: {
		Title:   "500 Internal Server Error",
		Heading: "Internal Server Error",
		Message: "The server encountered an internal error and was unable to complete your request.",
	},
}

// PrefersJSON checks if the client prefers application/json based on the
// Accept header. Ties between equal q-values break on specificity
// (application/json beats application/* beats */*), then header order.
func PrefersJSON(acceptHeaderValue string) bool {
	if acceptHeaderValue == "" {
		return false // Default to HTML
	}

	type offer struct {
		mediaType string
		q         float64
		specific  bool
		order     int
	}
	var offers []offer

	rawParts := strings.Split(acceptHeaderValue, ",")
	for i, partStr := range rawParts {
		partStr = strings.TrimSpace(partStr)
		mediaType := partStr
		qValue := 1.0

		if idx := strings.Index(partStr, ";"); idx != -1 {
			mediaType = strings.TrimSpace(partStr[:idx])
			paramsStr := strings.TrimSpace(partStr[idx+1:])
			for _, param := range strings.Split(paramsStr, ";") {
				param = strings.TrimSpace(param)
				if strings.HasPrefix(param, "q=") {
					if q, err := strconv.ParseFloat(param[2:], 64); err == nil && q >= 0 && q <= 1 {
						qValue = q
					} else {
						qValue = 0
					}
					break
				}
			}
		}

		// A media type with q=0 is an explicit rejection.
		if qValue > 0 {
			offers = append(offers, offer{
				mediaType: strings.ToLower(mediaType),
				q:         qValue,
				specific:  !strings.HasSuffix(mediaType, "/*") && mediaType != "*/*",
				order:     i,
			})
		}
	}

	if len(offers) == 0 {
		return false
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].q != offers[j].q {
			return offers[i].q > offers[j].q
		}
		if offers[i].specific != offers[j].specific {
			return offers[i].specific
		}
		return offers[i].order < offers[j].order
	})

	return offers[0].mediaType == "application/json"
}

// WriteError sends a negotiated error response: JSON when the Accept header
// prefers application/json, a default HTML page otherwise. Error responses
// are marked uncacheable. For HEAD requests headers are computed but no body
// is written.
func WriteError(w http.ResponseWriter, req *http.Request, statusCode int, detailMessage string, log *logger.Logger) {
	statusText := http.StatusText(statusCode)
	if statusText == "" {
		statusText = "Error"
	}

	var accept string
	if req != nil {
		accept = req.Header.Get("Accept")
	}

	var body []byte
	var contentType string
	jsonMarshalFailed := false

	if PrefersJSON(accept) {
		contentType = "application/json; charset=utf-8"
		var marshalErr error
		body, marshalErr = jsonMarshalFunc(ErrorResponseJSON{
			Error: ErrorDetail{StatusCode: statusCode, Message: statusText, Detail: detailMessage},
		})
		if marshalErr != nil {
			if log != nil {
				log.Error("Failed to marshal JSON error response, falling back to HTML", logger.LogFields{
					"error": marshalErr.Error(), "status": statusCode,
				})
			}
			jsonMarshalFailed = true
		}
	}

	if body == nil || jsonMarshalFailed {
		contentType = "text/html; charset=utf-8"
		var title, heading, message string
		if msgData, ok := defaultHTMLMessages[statusCode]; ok {
			title = msgData.Title
			heading = msgData.Heading
			message = msgData.Message
		} else {
			title = fmt.Sprintf("%d %s", statusCode, statusText)
			heading = statusText
			message = "The server encountered an error processing your request."
			if detailMessage != "" {
				message = html.EscapeString(detailMessage)
			}
		}
		body = htmlErrorBody(title, heading, message)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if req != nil && req.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil && log != nil {
		log.Error("Failed to write error response body", logger.LogFields{
			"error": err.Error(), "status": statusCode,
		})
	}
}

// htmlErrorBody renders the default error page.
func htmlErrorBody(title, heading, message string) []byte {
	titleEsc := html.EscapeString(title)
	headingEsc := html.EscapeString(heading)
	return []byte(fmt.Sprintf(
		`<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>`,
		titleEsc, headingEsc, message,
	))
}

// TestingOnlySetJSONMarshal is used by tests to mock json.Marshal behavior.
func TestingOnlySetJSONMarshal(fn func(v interface{}) ([]byte, error)) func(v interface{}) ([]byte, error) {
	original := jsonMarshalFunc
	jsonMarshalFunc = fn
	return original
}
