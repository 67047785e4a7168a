package pkgrouter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const maxLoggedBodyBytes = 16 * 1024

//nolint:gochecknoglobals // global for fast reuse
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-api-key":     {},
	"token":         {},
	"access_token":  {},
	"password":      {},
}

func maskHeaders(headers http.Header) http.Header {
	result := headers.Clone()
	for key := range result {
		if _, found := sensitiveKeys[strings.ToLower(key)]; found {
			result.Set(key, "***")
		}
	}
	return result
}

func maskData(v any) any {
	switch val := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(val))
		for k, v2 := range val {
			if _, found := sensitiveKeys[strings.ToLower(k)]; found {
				masked[k] = "***"
			} else {
				masked[k] = maskData(v2)
			}
		}
		return masked
	case []any:
		res := make([]any, len(val))
		for i, v2 := range val {
			res[i] = maskData(v2)
		}
		return res
	default:
		return v
	}
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// loggableBody reports whether bodies of this content type are small
// structured data. Uploads (CSV, multipart) and rendered reports are not, and
// are never buffered for logging.
func loggableBody(contentType string) bool {
	switch mediaType(contentType) {
	case "application/json", "application/x-www-form-urlencoded":
		return true
	default:
		return false
	}
}

// describeBody returns the masked form of a loggable body, or nil.
func describeBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return nil
	}

	switch mediaType(contentType) {
	case "application/json":
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return "<malformed json omitted>"
		}
		return maskData(v)
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return "<malformed form omitted>"
		}
		masked := make(map[string]any, len(values))
		for k, v := range values {
			if _, found := sensitiveKeys[strings.ToLower(k)]; found {
				masked[k] = "***"
				continue
			}
			if len(v) == 1 {
				masked[k] = v[0]
			} else {
				masked[k] = v
			}
		}
		return masked
	default:
		return nil
	}
}

func omittedBody(contentType string, size int64) any {
	if size <= 0 {
		return nil
	}
	mt := mediaType(contentType)
	if mt == "" {
		mt = "unknown"
	}
	return fmt.Sprintf("<%s body omitted, %d bytes>", mt, size)
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	body    *bytes.Buffer
	capture bool
	capped  bool
	sniffed bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if !w.sniffed {
		w.sniffed = true
		w.capture = loggableBody(w.Header().Get("Content-Type"))
	}

	if w.capture && !w.capped && len(p) > 0 {
		remaining := maxLoggedBodyBytes - w.body.Len()
		if len(p) > remaining {
			w.body.Write(p[:remaining])
			w.capped = true
		} else {
			w.body.Write(p)
		}
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

//nolint:err113 // it use dynamic error
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (w *statusRecorder) responseBody() any {
	if !w.capture {
		return omittedBody(w.Header().Get("Content-Type"), int64(w.bytes))
	}
	if w.capped {
		return fmt.Sprintf("<body truncated, %d bytes>", w.bytes)
	}
	return describeBody(w.Header().Get("Content-Type"), w.body.Bytes())
}

func matchedRoutePath(r *http.Request) string {
	pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath()
	if pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func middlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := matchedRoutePath(r)
		start := time.Now()
		contentType := r.Header.Get("Content-Type")

		var reqBody any
		if loggableBody(contentType) && r.Body != nil {
			//nolint:errcheck // best effort for logging only
			head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
			r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}

			if len(head) > maxLoggedBodyBytes {
				reqBody = omittedBody(contentType, r.ContentLength)
			} else {
				reqBody = describeBody(contentType, head)
			}
		} else {
			reqBody = omittedBody(contentType, r.ContentLength)
		}

		slog.InfoContext(
			r.Context(),
			"request received",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"headers", maskHeaders(r.Header),
			"body", reqBody,
		)

		rec := &statusRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		slog.Log(
			r.Context(),
			levelForStatus(status),
			"response sent",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"latency_ms", time.Since(start).Milliseconds(),
			"body", rec.responseBody(),
		)
	})
}

type readCloser struct {
	io.Reader
	io.Closer
}
