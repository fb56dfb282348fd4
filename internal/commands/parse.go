package commands

import (
	"fmt"
	"strings"
)

// splitLine tokenizes one input line. Single and double quotes group
// words; backslash escapes the next character outside single quotes.
func splitLine(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	flush := func() {
		if inWord {
			fields = append(fields, current.String())
			current.Reset()
			inWord = false
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			inWord = true
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %q quote", quote)
	}
	flush()
	return fields, nil
}
