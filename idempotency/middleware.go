package idempotency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	perrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/coordcache/httperr"
)

const (
	// HeaderKey carries the client's idempotency key.
	HeaderKey = "Idempotency-Key"

	// HeaderReplay is set to "true" on replayed responses.
	HeaderReplay = "Idempotency-Replay"
)

// handlerFailure carries a response that must reach the client but not be recorded.
type handlerFailure struct {
	resp Response
}

func (f *handlerFailure) Error() string {
	return fmt.Sprintf("handler responded with status %d", f.resp.Status)
}

var errHandlerPanicked = errors.New("handler panicked")

/*
Middleware deduplicates requests carrying an Idempotency-Key header.

The downstream handlers' response is captured. Statuses below 400 are
recorded and replayed to later requests with the same key; statuses of 400
and above, or an aborted chain, are passed through and not recorded. A panic
downstream releases the processing lock and is re-raised for gin's recovery
middleware. Requests without the header are untouched. Malformed keys are
rejected with 400 and a JSON error body; a recorded key sent with a different
request body is rejected with 409.
*/
func Middleware(coord *Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}

		meta := Metadata{Method: c.Request.Method, Path: c.FullPath()}
		if c.Request.Body != nil {
			payload, err := io.ReadAll(c.Request.Body)
			if err != nil {
				httperr.Abort(c, perrors.Wrap(err, perrors.CodeInvalidInput, "unreadable request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(payload))
			meta.Fingerprint = Fingerprint(payload)
		}
		original := c.Writer

		var panicked any
		outcome, err := coord.Execute(c.Request.Context(), key, meta, func(context.Context) (_ Response, err error) {
			writer := &responseWriter{
				ResponseWriter: original,
				body:           &bytes.Buffer{},
				statusCode:     http.StatusOK,
			}
			c.Writer = writer
			defer func() {
				c.Writer = original
				if p := recover(); p != nil {
					panicked = p
					err = errHandlerPanicked
				}
			}()
			c.Next()

			resp := Response{
				Status: writer.statusCode,
				Header: original.Header().Clone(),
				Body:   writer.body.Bytes(),
			}
			if c.IsAborted() || resp.Status >= http.StatusBadRequest {
				return Response{}, &handlerFailure{resp: resp}
			}
			return resp, nil
		})
		c.Writer = original
		if panicked != nil {
			// lock released; let the recovery middleware answer
			panic(panicked)
		}

		var failure *handlerFailure
		switch {
		case err == nil:
		case errors.As(err, &failure):
			writeResponse(c, failure.resp, false)
			return
		default:
			httperr.Abort(c, err)
			return
		}

		writeResponse(c, outcome.Response, outcome.Replayed)
	}
}

func writeResponse(c *gin.Context, resp Response, replayed bool) {
	h := c.Writer.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	if replayed {
		h.Set(HeaderReplay, "true")
		c.Abort()
	}
	c.Writer.WriteHeader(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
}

// responseWriter captures a handler's response instead of sending it.
type responseWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
}

func (w *responseWriter) WriteHeaderNow() {}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.WriteString(s)
}

func (w *responseWriter) Status() int { return w.statusCode }

func (w *responseWriter) Written() bool { return w.written }

func (w *responseWriter) Size() int { return w.body.Len() }
