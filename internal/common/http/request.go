package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"infolio/internal/common/errors"
)

// Request describes one logical HTTP operation.
type Request struct {
	Method string
	// Endpoint is joined to the client's base URL
	Endpoint string
	// Params are appended to the query string
	Params url.Values
	// Body is sent as JSON when the effective Content-Type is application/json,
	// form-encoded otherwise. []byte, string and io.Reader bodies are sent verbatim.
	Body interface{}
	// Headers override the client's default headers key by key
	Headers map[string]string
	// XMLQuery is appended to the URL as XML=<value> without escaping, for
	// upstreams that take an XML document in the query string.
	XMLQuery string
}

// Response is a successful (2xx) upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	// Attempts counts the requests issued, including any reissue after reauthentication
	Attempts int
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.InternalError("failed to decode response body", err)
	}
	return nil
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// joinURL joins base and endpoint with exactly one slash between them
func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// buildURL resolves the request target, merging Params into any query the
// endpoint already carries.
func buildURL(base string, req Request) (string, error) {
	target := joinURL(base, req.Endpoint)

	if len(req.Params) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return "", errors.ValidationError(fmt.Sprintf("invalid endpoint %q: %v", req.Endpoint, err))
		}
		q := u.Query()
		for k, values := range req.Params {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	if req.XMLQuery != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "XML=" + req.XMLQuery
	}

	return target, nil
}

// mergeHeaders overlays extra onto defaults. Keys are compared in canonical
// form; the last write wins.
func mergeHeaders(defaults, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(extra))
	for k, v := range defaults {
		merged[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	for k, v := range extra {
		merged[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return merged
}

// isJSON reports whether a Content-Type value names application/json
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, "application/json")
}

// rawBody buffers verbatim bodies once so every attempt can resend them.
// Other bodies are returned unchanged for per-attempt encoding.
func rawBody(body interface{}) (interface{}, error) {
	r, ok := body.(io.Reader)
	if !ok {
		return body, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.InternalError("failed to read request body", err)
	}
	return data, nil
}

// encodeBody serializes body for the effective headers. It returns the
// Content-Type to add when the headers carry none.
func encodeBody(body interface{}, headers map[string]string) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}

	switch b := body.(type) {
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	}

	if isJSON(headers["Content-Type"]) {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", errors.ValidationError(fmt.Sprintf("cannot encode request body as JSON: %v", err))
		}
		return bytes.NewReader(data), "", nil
	}

	form, err := formValues(body)
	if err != nil {
		return nil, "", err
	}
	return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
}

func formValues(body interface{}) (url.Values, error) {
	switch b := body.(type) {
	case url.Values:
		return b, nil
	case map[string][]string:
		return url.Values(b), nil
	case map[string]string:
		form := url.Values{}
		for k, v := range b {
			form.Set(k, v)
		}
		return form, nil
	case map[string]interface{}:
		form := url.Values{}
		for k, value := range b {
			switch v := value.(type) {
			case nil:
			case []string:
				for _, item := range v {
					form.Add(k, item)
				}
			default:
				form.Set(k, fmt.Sprint(v))
			}
		}
		return form, nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("cannot form-encode request body of type %T", body))
	}
}
