package core

import (
	"strconv"
	"strings"
)

// SameSite enumerates the Set-Cookie SameSite attribute.
type SameSite int

const (
	SameSiteUndefined SameSite = iota
	SameSiteNone
	SameSiteLax
	SameSiteStrict
)

func (s SameSite) String() string {
	switch s {
	case SameSiteNone:
		return "None"
	case SameSiteLax:
		return "Lax"
	case SameSiteStrict:
		return "Strict"
	default:
		return ""
	}
}

// Cookie models both a request-side name/value pair and a response-side
// Set-Cookie value. Request parsing only ever populates Name/Value;
// browsers never echo attributes back.
type Cookie struct {
	Name     string
	Value    string
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
	Domain   string
	Path     string
	MaxAge   int // negative sentinel = omit
}

// NewCookie builds a Cookie with the value sanitized per the data model:
// '"', '\\', ',', '\t', '\r', '\n', '\x00' are stripped.
func NewCookie(name, value string) Cookie {
	return Cookie{Name: name, Value: sanitizeCookieValue(value), MaxAge: -1}
}

func sanitizeCookieValue(v string) string {
	if strings.IndexFunc(v, isStrippedCookieRune) < 0 {
		return v
	}
	b := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if isStrippedCookieRune(rune(v[i])) {
			continue
		}
		b = append(b, v[i])
	}
	return string(b)
}

func isStrippedCookieRune(r rune) bool {
	switch r {
	case '"', '\\', ',', '\t', '\r', '\n', 0:
		return true
	default:
		return false
	}
}

// ParseCookieHeader parses a raw `Cookie:` header value into name->Cookie.
// Components are semicolon-separated; a bare "Secure"/"HttpOnly" sets the
// matching flag on the cookie currently being built, named attributes
// (SameSite, Domain, Path, Expires, Max-Age) update it, and any other
// name=value pair commits the current cookie (if non-empty) and starts a
// new one.
func ParseCookieHeader(header string) map[string]Cookie {
	out := make(map[string]Cookie)
	var current Cookie
	have := false

	commit := func() {
		if have && current.Name != "" {
			out[current.Name] = current
		}
		current = Cookie{MaxAge: -1}
		have = false
	}

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasEq := strings.Cut(part, "=")
		if !hasEq {
			switch strings.ToLower(key) {
			case "secure":
				current.Secure = true
				continue
			case "httponly":
				current.HTTPOnly = true
				continue
			}
			// Bare name with no value: treat as that name with an empty value.
		}

		switch strings.ToLower(key) {
		case "samesite":
			switch strings.ToLower(value) {
			case "strict":
				current.SameSite = SameSiteStrict
			case "lax":
				current.SameSite = SameSiteLax
			case "none":
				current.SameSite = SameSiteNone
			}
			continue
		case "domain":
			current.Domain = value
			continue
		case "path":
			current.Path = value
			continue
		case "expires":
			continue
		case "max-age":
			if n, err := strconv.Atoi(value); err == nil {
				current.MaxAge = n
			}
			continue
		}

		commit()
		current = Cookie{Name: key, Value: value, MaxAge: -1}
		have = true
	}
	commit()
	return out
}

// Serialize renders a cookie for the Set-Cookie header:
// name=value; Secure; HttpOnly; SameSite=X; Domain=...; Path=...; Max-Age=N
func (c Cookie) Serialize() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != SameSiteUndefined {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite.String())
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.MaxAge >= 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	}
	return b.String()
}
