package checkpoint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sarchlab/cyclesim/insts"
)

// Diff renders a unified diff between two memory images, one "addr: value"
// line per word. It returns "" when the images are equal.
func Diff(want, got []insts.Word) (string, error) {
	if slices.Equal(want, got) {
		return "", nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(dump(want)),
		B:        difflib.SplitLines(dump(got)),
		FromFile: "checkpoint",
		ToFile:   "current",
		Context:  2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff memory images: %w", err)
	}

	return diff, nil
}

func dump(image []insts.Word) string {
	var sb strings.Builder
	for addr, w := range image {
		fmt.Fprintf(&sb, "%d: %d\n", addr, w)
	}
	return sb.String()
}
