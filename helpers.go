package pubcms

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
)

// formValues parses a multipart or urlencoded request body and returns its
// fields. Query parameters are not included.
func formValues(c echo.Context, maxMemory int64) (url.Values, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := req.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, &ValidationError{Field: "body", Message: "Invalid multipart form: " + err.Error()}
		}
	} else if err := req.ParseForm(); err != nil {
		return nil, &ValidationError{Field: "body", Message: "Invalid form: " + err.Error()}
	}
	if req.PostForm == nil {
		return url.Values{}, nil
	}
	return req.PostForm, nil
}

// requiredField returns the first value of key. An empty value counts as
// missing.
func requiredField(form url.Values, key string) (string, error) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 || vs[0] == "" {
		return "", &ValidationError{Field: key, Message: "Field required: " + key}
	}
	return vs[0], nil
}

func optionalField(form url.Values, key string) Optional[string] {
	if vs, ok := form[key]; ok && len(vs) > 0 {
		return Some(vs[0])
	}
	return Optional[string]{}
}

func optionalPtr(form url.Values, key string) *string {
	if o := optionalField(form, key); o.Set {
		return &o.Value
	}
	return nil
}

// parseBool accepts the spellings HTML forms and query strings commonly use.
func parseBool(field, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "on", "yes", "y":
		return true, nil
	case "0", "f", "false", "off", "no", "n":
		return false, nil
	}
	return false, &ValidationError{Field: field, Message: "Invalid boolean value for " + field}
}

// optionalBool reads a boolean field; empty or absent values are unset.
func optionalBool(values url.Values, key string) (Optional[bool], error) {
	s := values.Get(key)
	if s == "" {
		return Optional[bool]{}, nil
	}
	b, err := parseBool(key, s)
	if err != nil {
		return Optional[bool]{}, err
	}
	return Some(b), nil
}

func queryInt(c echo.Context, key string, fallback int) (int, error) {
	s := c.QueryParam(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Field: key, Message: "Invalid integer value for " + key}
	}
	return n, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "id", Message: "Invalid content item id"}
	}
	return id, nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(append([]string{"/", u.Path}, pathSegments...)...)
	return u.String()
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
