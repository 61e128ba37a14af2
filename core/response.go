package core

import (
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

// statusTable is the minimum status code -> reason phrase table required
// by §4.4. Phrases are upper-cased to match the "FOUND" style the
// testable scenarios (S8) expect.
var statusTable = map[string]string{
	"200": "OK",
	"301": "MOVED PERMANENTLY",
	"302": "FOUND",
	"308": "PERMANENT REDIRECT",
	"400": "BAD REQUEST",
	"401": "UNAUTHORIZED",
	"403": "FORBIDDEN",
	"404": "NOT FOUND",
	"411": "LENGTH REQUIRED",
	"413": "PAYLOAD TOO LARGE",
	"414": "URI TOO LONG",
	"418": "I'M A TEAPOT",
	"426": "UPGRADE REQUIRED",
	"451": "UNAVAILABLE FOR LEGAL REASONS",
	"500": "INTERNAL SERVER ERROR",
	"501": "NOT IMPLEMENTED",
	"505": "HTTP VERSION NOT SUPPORTED",
}

// Response builds and serializes an HTTP/1.1 response.
type Response struct {
	Code    string
	Status  string
	Method  string // echoed from the request, controls HEAD suppression
	Headers map[string]string
	Cookies []Cookie
	Body    []byte

	statusExplicit bool
}

// NewResponse builds the default response for req: 200 OK, Connection:
// close, Content-Type: text/html, empty body. Session resolution (minting
// an id cookie) is the caller's responsibility — see session.Store and
// the ember.Server request path, which is where §4.4's session-aware
// construction step lives in this implementation.
func NewResponse(req *Request) *Response {
	return &Response{
		Code:   "200",
		Method: req.Method,
		Headers: map[string]string{
			"Connection":   "close",
			"Content-Type": "text/html",
		},
	}
}

// SetStatus sets an explicit status code and, optionally, reason phrase.
func (r *Response) SetStatus(code string, phrase ...string) {
	r.Code = code
	if len(phrase) > 0 {
		r.Status = phrase[0]
		r.statusExplicit = true
	} else {
		r.statusExplicit = false
	}
}

// SetHeader sets a response header.
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// AddCookie appends a cookie to be emitted as Set-Cookie.
func (r *Response) AddCookie(c Cookie) {
	r.Cookies = append(r.Cookies, c)
}

// IsRedirect reports whether Code starts with '3' and a Location header
// is set — the spec's redirect-as-short-circuit signal.
func (r *Response) IsRedirect() bool {
	if len(r.Code) == 0 || r.Code[0] != '3' {
		return false
	}
	_, ok := r.Headers["Location"]
	return ok
}

// JSON marshals v and sets it as the body with an application/json
// Content-Type, mirroring the convenience the teacher's Context.JSON
// offers. Uses goccy/go-json for the encode, the same JSON library the
// teacher's Context relies on.
func (r *Response) JSON(code string, v any) error {
	b, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	r.SetStatus(code)
	r.SetHeader("Content-Type", "application/json")
	r.Body = b
	return nil
}

// BadRequestResponse, NotFoundResponse and friends are small pre-compiled
// convenience constructors mirroring bolt/core/responses.go's status
// family, adapted to this spec's plain-HTML error bodies.
func BadRequestResponse(req *Request) *Response {
	r := NewResponse(req)
	r.SetStatus("400")
	r.Body = []byte("<h1>400: Bad Request</h1>")
	return r
}

func NotFoundResponse(req *Request) *Response {
	r := NewResponse(req)
	r.SetStatus("404")
	r.Body = []byte("<h1>404: Not Found</h1>")
	return r
}

func NotImplementedResponse(req *Request) *Response {
	r := NewResponse(req)
	r.SetStatus("501")
	r.Body = []byte("<h1>501: Not Implemented</h1>")
	return r
}

func HTTPVersionNotSupportedResponse(req *Request) *Response {
	r := NewResponse(req)
	r.SetStatus("505")
	r.Body = []byte("<h1>505: HTTP Version Not Supported</h1>")
	return r
}

const dateFormat = "Mon, 02 Jan 2006 15:04:05"

// Serialize renders the full wire response per §4.4.
func (r *Response) Serialize() []byte {
	code := r.Code
	phrase := r.Status
	if !r.statusExplicit {
		if p, ok := statusTable[code]; ok {
			phrase = p
		} else if code != "" {
			code = "500"
			phrase = statusTable["500"]
			r.Body = []byte("<h1>500: Internal Server Error</h1>")
			r.SetHeader("Content-Type", "text/html")
		} else {
			phrase = statusTable["200"]
		}
	}

	var b strings.Builder
	b.Grow(256 + len(r.Body))

	b.WriteString("HTTP/1.1 ")
	b.WriteString(code)
	b.WriteByte(' ')
	b.WriteString(phrase)
	b.WriteString("\r\n")

	if len(r.Cookies) > 0 {
		// §9 open question: one Set-Cookie header per cookie (RFC 6265),
		// the spec's recommended resolution over the combined-header
		// behavior some source variants exhibit.
		for _, c := range r.Cookies {
			b.WriteString("Set-Cookie: ")
			b.WriteString(c.Serialize())
			b.WriteString("\r\n")
		}
	}

	b.WriteString("Date: ")
	b.WriteString(time.Now().UTC().Format(dateFormat))
	b.WriteString("\r\n")

	for name, value := range r.Headers {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	if r.Method == "HEAD" {
		b.WriteString("Content-Length: 0\r\n\r\n")
		return []byte(b.String())
	}

	b.WriteString("Content-Length: ")
	b.WriteString(strconv.Itoa(len(r.Body)))
	b.WriteString("\r\n\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}
