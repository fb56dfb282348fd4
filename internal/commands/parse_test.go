package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "ls", []string{"ls"}},
		{"args", "cd default/web-1", []string{"cd", "default/web-1"}},
		{"collapses whitespace", "  exec   ls  -la ", []string{"exec", "ls", "-la"}},
		{"tabs", "logs\t-f", []string{"logs", "-f"}},
		{"double quotes group", `exec sh -c "echo hi there"`, []string{"exec", "sh", "-c", "echo hi there"}},
		{"single quotes group", `exec echo 'a b'`, []string{"exec", "echo", "a b"}},
		{"escaped space", `cd my\ pod`, []string{"cd", "my pod"}},
		{"escape inside double quotes", `exec echo "a\"b"`, []string{"exec", "echo", `a"b`}},
		{"empty quoted word survives", `exec echo ""`, []string{"exec", "echo", ""}},
		{"empty line", "", nil},
		{"only spaces", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitLineErrors(t *testing.T) {
	_, err := splitLine(`exec echo "unterminated`)
	assert.Error(t, err)

	_, err = splitLine(`cd trailing\`)
	assert.Error(t, err)
}
