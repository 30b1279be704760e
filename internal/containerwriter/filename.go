package containerwriter

import (
	"time"

	"github.com/lestrrat-go/strftime"
)

// ResolveFilename expands a strftime(3)-style output path template
// (spec.md §6 lists "preset loading" and filename handling as external
// collaborators whose concrete form this adapter supplies) against t.
func ResolveFilename(pattern string, t time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", err
	}
	return f.FormatString(t), nil
}
