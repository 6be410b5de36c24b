package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveSymlinkedContainment walks cleaned component by component from
// root, resolving any symlink it encounters and re-checking containment
// after each hop. Components that don't exist yet (the path being created)
// are accepted as-is once we've verified every existing ancestor resolves
// inside root — this lets callers validate a path before creating it,
// matching the spec's "fails closed" requirement without forbidding
// legitimate creates.
func resolveSymlinkedContainment(root, cleaned string) (string, error) {
	rel, err := filepath.Rel(root, cleaned)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return cleaned, nil
	}

	segments := strings.Split(rel, string(filepath.Separator))
	current := root

	for i, seg := range segments {
		current = filepath.Join(current, seg)

		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				// Remaining path doesn't exist yet: nothing left to resolve.
				return cleaned, nil
			}
			return "", fmt.Errorf("stat %s: %w", current, err)
		}

		if info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(current)
		if err != nil {
			return "", fmt.Errorf("readlink %s: %w", current, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		target = filepath.Clean(target)

		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return "", fmt.Errorf("symlink %s escapes project root via %s", current, target)
		}

		// Rebuild the remaining path under the resolved target and recurse.
		remainder := filepath.Join(segments[i+1:]...)
		resolvedCurrent := filepath.Join(target, remainder)
		return resolveSymlinkedContainment(root, filepath.Clean(resolvedCurrent))
	}

	return cleaned, nil
}
