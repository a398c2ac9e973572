package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello world", "hello-world"},
		{"Java Script", "Java-Script"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"C++ tricks!", "C-tricks"},
		{"double  space", "double-space"},
		{"dots.at.end...", "dots.at.end"},
		{"under_score", "under_score"},
		{"한글 제목", "한글-제목"},
		{"힣과 힞", "힣과-힞"}, // last syllables of the Hangul block survive
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Escape(tc.in), "Escape(%q)", tc.in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "java-script", Normalize("Java Script"))
	assert.Equal(t, "golang", Normalize("GoLang"))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"Java Script", "a--b", " Mixed CASE.Name ", "한글 태그"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize must be stable for %q", in)
	}
}
