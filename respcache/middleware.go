package respcache

import (
	"bytes"
	"net/http"
)

// HeaderCache carries HIT or MISS on responses passing through the cache.
const HeaderCache = "X-Cache"

// Recorded is a buffered handler response.
type Recorded struct {
	Status int
	Header http.Header
	Body   []byte
}

// Interceptor wraps a handler without replacing the ResponseWriter it writes
// to. Before runs first and returns true when it has written the whole
// response itself. Otherwise the handler runs into a buffer, After sees the
// buffered response, and only then is it sent to the client.
type Interceptor struct {
	Before func(w http.ResponseWriter, r *http.Request) bool
	After  func(r *http.Request, rec *Recorded)
}

// Decorate applies ic around next.
func Decorate(next http.Handler, ic Interceptor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ic.Before != nil && ic.Before(w, r) {
			return
		}

		rec := newRecorder()
		next.ServeHTTP(rec, r)

		out := &Recorded{Status: rec.status, Header: rec.header, Body: rec.body.Bytes()}
		if ic.After != nil {
			ic.After(r, out)
		}
		rec.flush(w)
	})
}

// Interceptor returns the HTTP hooks for GET routes. tenantOf resolves the
// caller's tenant; requests without one bypass the cache. Hits are served as
// JSON.
func (c *Cache) Interceptor(tenantOf func(*http.Request) (string, bool)) Interceptor {
	return Interceptor{
		Before: func(w http.ResponseWriter, r *http.Request) bool {
			if r.Method != http.MethodGet {
				return false
			}
			tenant, ok := tenantOf(r)
			if !ok {
				return false
			}
			if v, hit := c.Lookup(r.Context(), tenant, CanonicalPath(r)); hit {
				w.Header().Set(HeaderCache, "HIT")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(v)
				return true
			}
			w.Header().Set(HeaderCache, "MISS")
			return false
		},
		After: func(r *http.Request, rec *Recorded) {
			if r.Method != http.MethodGet || rec.Status < 200 || rec.Status > 299 || len(rec.Body) == 0 {
				return
			}
			tenant, ok := tenantOf(r)
			if !ok {
				return
			}
			c.Put(r.Context(), tenant, CanonicalPath(r), rec.Body)
		},
	}
}

// CanonicalPath is the request path plus its query with keys sorted, so two
// spellings of the same query share one entry.
func CanonicalPath(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.Query().Encode()
}

type recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(p)
}

func (r *recorder) flush(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range r.header {
		dst[k] = v
	}
	w.WriteHeader(r.status)
	if r.body.Len() > 0 {
		_, _ = w.Write(r.body.Bytes())
	}
}
