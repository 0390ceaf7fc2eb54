package pubcms

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://example.com/api/content/3", BuildURL("https://example.com", "api", "content", "3"))
	assert.Equal(t, "https://example.com/cms/api/news", BuildURL("https://example.com/cms/", "api", "news"))
	assert.Equal(t, "http://localhost:8000/", BuildURL("http://localhost:8000"))
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "on", "yes"} {
		b, err := parseBool("published", s)
		require.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "0", "off", "no"} {
		b, err := parseBool("published", s)
		require.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := parseBool("published", "maybe")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOptionalField(t *testing.T) {
	form := url.Values{"title": {""}, "tags": {"a,b"}}

	assert.Equal(t, Some(""), optionalField(form, "title"))
	assert.Equal(t, Some("a,b"), optionalField(form, "tags"))
	assert.False(t, optionalField(form, "excerpt").Set)
	assert.Nil(t, optionalPtr(form, "excerpt"))
}

func TestRequiredField(t *testing.T) {
	form := url.Values{"title": {"Hello"}, "author": {""}}

	v, err := requiredField(form, "title")
	require.NoError(t, err)
	assert.Equal(t, "Hello", v)

	for _, key := range []string{"author", "content"} {
		_, err := requiredField(form, key)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, key)
		assert.Equal(t, "Field required: "+key, verr.Message)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo…", truncate("héllo wörld", 5))
}
