// Package uri parses data entry URIs of the form
//
//	scheme:[//authority]path[?query][#fragment]
//
// Query arguments are separated by ';' or '&' and keep their order.
// Keys and values are stored raw, without percent decoding.
package uri

import (
	"errors"
	"strings"
)

var (
	ErrEmpty     = errors.New("empty URI")
	ErrNoScheme  = errors.New("URI has no scheme")
	ErrBadScheme = errors.New("invalid URI scheme")
)

// Authority is the user-info/host/port part of a URI.
type Authority struct {
	UserInfo string
	Host     string
	Port     string
}

func (a Authority) String() string {
	var sb strings.Builder
	if a.UserInfo != "" {
		sb.WriteString(a.UserInfo)
		sb.WriteByte('@')
	}
	sb.WriteString(a.Host)
	if a.Port != "" {
		sb.WriteByte(':')
		sb.WriteString(a.Port)
	}
	return sb.String()
}

// Empty reports whether no authority was given.
func (a Authority) Empty() bool {
	return a.UserInfo == "" && a.Host == "" && a.Port == ""
}

type param struct {
	key   string
	value string
}

// Query is an ordered set of key/value arguments. Keys are unique.
type Query struct {
	params []param
}

// Get returns the value of key and whether it is present.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q.params {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (q Query) Has(key string) bool {
	_, ok := q.Get(key)
	return ok
}

// Insert sets key to value, replacing an existing value in place.
func (q *Query) Insert(key, value string) {
	for i, p := range q.params {
		if p.key == key {
			q.params[i].value = value
			return
		}
	}
	q.params = append(q.params, param{key: key, value: value})
}

// Remove deletes key. It reports whether the key was present.
func (q *Query) Remove(key string) bool {
	for i, p := range q.params {
		if p.key == key {
			q.params = append(q.params[:i:i], q.params[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the keys in insertion order.
func (q Query) Keys() []string {
	keys := make([]string, len(q.params))
	for i, p := range q.params {
		keys[i] = p.key
	}
	return keys
}

// Len returns the number of arguments.
func (q Query) Len() int { return len(q.params) }

// Clone returns an independent copy.
func (q Query) Clone() Query {
	return Query{params: append([]param(nil), q.params...)}
}

func (q Query) String() string {
	parts := make([]string, len(q.params))
	for i, p := range q.params {
		if p.value == "" {
			parts[i] = p.key
			continue
		}
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, ";")
}

// URI is a parsed URI. It is a value type; copies are independent once the
// query is cloned.
type URI struct {
	Scheme    string
	Authority Authority
	Path      string
	Query     Query
	Fragment  string
}

// Parse parses s. Percent-escapes in query values are decoded.
func Parse(s string) (URI, error) {
	var u URI
	if strings.TrimSpace(s) == "" {
		return u, ErrEmpty
	}

	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return u, ErrNoScheme
	}
	u.Scheme = s[:colon]
	if !validScheme(u.Scheme) {
		return u, ErrBadScheme
	}
	rest := s[colon+1:]

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		u.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		u.Query = parseQuery(rest[i+1:])
		rest = rest[:i]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}
		u.Authority = parseAuthority(rest[:end])
		rest = rest[end:]
	}
	u.Path = rest
	return u, nil
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func parseAuthority(s string) Authority {
	var a Authority
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		a.UserInfo = s[:i]
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 && !strings.HasSuffix(s, "]") {
		a.Port = s[i+1:]
		s = s[:i]
	}
	a.Host = s
	return a
}

// parseQuery keeps keys and values as written; '+' and '%' are not
// decoded.
func parseQuery(s string) Query {
	var q Query
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '&' }) {
		key, value := part, ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			key, value = part[:i], part[i+1:]
		}
		q.Insert(key, value)
	}
	return q
}

// String reassembles the URI.
func (u URI) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteByte(':')
	if !u.Authority.Empty() {
		sb.WriteString("//")
		sb.WriteString(u.Authority.String())
	}
	sb.WriteString(u.Path)
	if u.Query.Len() > 0 {
		sb.WriteByte('?')
		sb.WriteString(u.Query.String())
	}
	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.Fragment)
	}
	return sb.String()
}
