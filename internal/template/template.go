// Package template implements the {{...}} token substitution engine used to
// render a rule or endpoint's response body against a request-derived
// context. It is a flat token rewriter, not an AST: unknown-name passthrough
// and per-occurrence re-evaluation are essential semantic features.
package template

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context carries everything a template render needs to resolve tokens for
// one request.
type Context struct {
	Method      string
	Path        string
	Header      http.Header
	Query       url.Values
	Body        []byte
	HasBody     bool
	ContentType string
	Params      map[string]string
}

var (
	nameFirst = []string{"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda", "William", "Elizabeth"}
	nameLast  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
	domains   = []string{"example.com", "mail.test", "example.org", "testmail.dev"}

	alphanumeric = []byte("abcdefghijklmnopqrstuvwxyz0123456789")
)

// Render replaces every "{{NAME}}" occurrence in body. Unknown names are
// left textually intact. Each occurrence is resolved independently, so two
// "{{$uuid}}" tokens produce two distinct values.
func Render(body string, ctx Context) string {
	var out strings.Builder
	i := 0
	for {
		start := strings.Index(body[i:], "{{")
		if start == -1 {
			out.WriteString(body[i:])
			break
		}
		start += i
		end := strings.Index(body[start+2:], "}}")
		if end == -1 {
			out.WriteString(body[i:])
			break
		}
		end = start + 2 + end

		out.WriteString(body[i:start])
		name := strings.TrimSpace(body[start+2 : end])
		if value, ok := resolve(name, ctx); ok {
			out.WriteString(value)
		} else {
			out.WriteString(body[start : end+2])
		}
		i = end + 2
	}
	return out.String()
}

func resolve(name string, ctx Context) (string, bool) {
	switch {
	case strings.HasPrefix(name, "$"):
		return resolveGenerator(name)
	case strings.HasPrefix(name, "request."):
		return resolveRequest(strings.TrimPrefix(name, "request."), ctx)
	default:
		if v, ok := ctx.Params[name]; ok {
			return v, true
		}
		return "", false
	}
}

func resolveGenerator(name string) (string, bool) {
	switch name {
	case "$uuid":
		return uuid.New().String(), true
	case "$randomInt":
		return strconv.Itoa(rand.Intn(1001)), true
	case "$randomFloat":
		return fmt.Sprintf("%.2f", float64(rand.Intn(101))/100.0), true
	case "$randomBool":
		return strconv.FormatBool(rand.Intn(2) == 1), true
	case "$timestamp":
		return time.Now().UTC().Format(time.RFC3339), true
	case "$timestampUnix":
		return strconv.FormatInt(time.Now().Unix(), 10), true
	case "$date":
		return time.Now().UTC().Format("2006-01-02"), true
	case "$randomEmail":
		first := pick(nameFirst)
		last := pick(nameLast)
		domain := pick(domains)
		return fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), domain), true
	case "$randomName":
		return fmt.Sprintf("%s %s", pick(nameFirst), pick(nameLast)), true
	case "$randomString":
		return randomAlphanumeric(16), true
	default:
		return "", false
	}
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func randomAlphanumeric(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(out)
}

func resolveRequest(field string, ctx Context) (string, bool) {
	switch {
	case field == "method":
		return ctx.Method, true
	case field == "path":
		return ctx.Path, true
	case strings.HasPrefix(field, "header."):
		name := strings.TrimPrefix(field, "header.")
		if ctx.Header == nil {
			return "", true
		}
		return ctx.Header.Get(name), true
	case strings.HasPrefix(field, "query."):
		key := strings.TrimPrefix(field, "query.")
		if ctx.Query == nil {
			return "", true
		}
		return ctx.Query.Get(key), true
	case field == "body":
		if !ctx.HasBody {
			return "", true
		}
		return string(ctx.Body), true
	case strings.HasPrefix(field, "body."):
		path := strings.TrimPrefix(field, "body.")
		return resolveBodyPath(path, ctx), true
	default:
		return "", false
	}
}

func isFormEncoded(contentType string) bool {
	mt := strings.ToLower(contentType)
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = mt[:idx]
	}
	return strings.TrimSpace(mt) == "application/x-www-form-urlencoded"
}

func resolveBodyPath(path string, ctx Context) string {
	if !ctx.HasBody || len(ctx.Body) == 0 {
		return ""
	}

	if isFormEncoded(ctx.ContentType) {
		values, err := url.ParseQuery(string(ctx.Body))
		if err != nil {
			return ""
		}
		return values.Get(path)
	}

	var doc any
	if err := json.Unmarshal(ctx.Body, &doc); err != nil {
		return ""
	}

	cur := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		next, ok := obj[part]
		if !ok {
			return ""
		}
		cur = next
	}

	return scalarOrJSON(cur)
}

func scalarOrJSON(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// StripForValidation rewrites every "{{...}}" token into a JSON-parseable
// placeholder so the surrounding string can be validated as JSON: a token
// inside a JSON string value becomes the unquoted insertion "__tpl__"; a
// token outside a string value becomes the quoted insertion "\"__tpl__\"".
// Escaped quotes are respected when tracking string boundaries.
func StripForValidation(body string) string {
	var out strings.Builder
	inString := false
	i := 0
	for i < len(body) {
		c := body[i]
		if c == '\\' && inString && i+1 < len(body) {
			out.WriteByte(c)
			out.WriteByte(body[i+1])
			i += 2
			continue
		}
		if c == '"' {
			inString = !inString
			out.WriteByte(c)
			i++
			continue
		}
		if c == '{' && i+1 < len(body) && body[i+1] == '{' {
			end := strings.Index(body[i+2:], "}}")
			if end == -1 {
				out.WriteString(body[i:])
				break
			}
			end = i + 2 + end + 2
			if inString {
				out.WriteString("__tpl__")
			} else {
				out.WriteString(`"__tpl__"`)
			}
			i = end
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}
