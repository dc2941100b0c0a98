package utils_test

import (
	"testing"

	"imuslab.com/corsgate/mod/utils"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{" a , b ,,c ", []string{"a", "b", "c"}},
		{"http://a.com,https://b.com", []string{"http://a.com", "https://b.com"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, utils.SplitList(tt.input), "input: %s", tt.input)
	}
}

func TestParseKeyValueList(t *testing.T) {
	got := utils.ParseKeyValueList("x-foo: bar, x-empty:, broken, :novalue")
	assert.Equal(t, map[string]string{
		"x-foo":   "bar",
		"x-empty": "",
	}, got)
}

func TestValidateListeningAddress(t *testing.T) {
	assert.True(t, utils.ValidateListeningAddress(":8080"))
	assert.True(t, utils.ValidateListeningAddress("0.0.0.0:8080"))
	assert.False(t, utils.ValidateListeningAddress("8080"))
	assert.False(t, utils.ValidateListeningAddress("0.0.0.0:99999"))
}
