package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsExecutableContent(t *testing.T) {
	cases := map[string]string{
		`<p>hi<script>alert(1)</script></p>`:         `<p>hi</p>`,
		`<p onclick="steal()">x</p>`:                 `<p>x</p>`,
		`<img src="x" onerror="steal()">`:            `<img src="x">`,
		`<a href="javascript:alert(1)">link</a>`:      `link`,
		`<style>body{display:none}</style><p>ok</p>`: `<p>ok</p>`,
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), in)
	}
}

func TestSanitizeKeepsStructure(t *testing.T) {
	in := `<h2>Round 1</h2><ol><li><strong>DSA</strong> <em>medium</em></li></ol><blockquote>tip</blockquote><p class="ql-align-center">c</p>`
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitizeDropsUnknownClasses(t *testing.T) {
	assert.Equal(t, `<p>c</p>`, Sanitize(`<p class="evil">c</p>`))
}

func TestSanitizePtr(t *testing.T) {
	assert.Nil(t, SanitizePtr(nil))
	blank := "<script>x</script>"
	assert.Nil(t, SanitizePtr(&blank))
	tip := "<p>practice</p>"
	assert.Equal(t, "<p>practice</p>", *SanitizePtr(&tip))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("<p><br></p>"))
	assert.True(t, IsBlank("<p>&nbsp;</p>"))
	assert.False(t, IsBlank("<p>x</p>"))
}
