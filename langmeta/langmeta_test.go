package langmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, canonicalize(tc.in), "canonicalize(%q)", tc.in)
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, Meta{English: "Chinese (Simplified)", Native: "简体中文"}, Resolve("zh-CN"))
	})

	t.Run("normalized match", func(t *testing.T) {
		assert.Equal(t, "Portuguese (Brazil)", Name("pt_br"))
		assert.Equal(t, "繁體中文", Native("zh_TW"))
	})

	t.Run("cldr fallback", func(t *testing.T) {
		assert.Equal(t, "Swedish", Name("sv"))
		assert.Equal(t, "svenska", Native("sv"))
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		assert.Equal(t, Meta{English: "not a tag!", Native: "not a tag!"}, Resolve("not a tag!"))
	})
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("zh_CN"))
	assert.True(t, Valid("de"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not a tag!"))
}
