package task

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  []string
	}{
		{"none", []string{"buy milk"}, []string{}},
		{"single", []string{"buy milk #groceries"}, []string{"groceries"}},
		{"lowercased", []string{"#Work #WORK #work"}, []string{"work"}},
		{"across texts", []string{"#home", "fix sink #plumbing #home"}, []string{"home", "plumbing"}},
		{"underscore and digits", []string{"#q3_goals v2 #sprint12"}, []string{"q3_goals", "sprint12"}},
		{"bare hash ignored", []string{"# not a tag"}, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractTags(tc.texts...)
			assert.Equal(t, tc.want, got)
			assert.NotNil(t, got)
		})
	}
}

func TestExtractTagsCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "#tag%02d ", i)
	}

	got := ExtractTags(b.String())
	assert.Len(t, got, 20)
}
