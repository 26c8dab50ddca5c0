package download

import (
	"os"
	"path/filepath"
	"strings"
)

const maxSafeTitleLen = 30

// SafeTitle reduces a video title to a filename-safe stem: letters, digits,
// spaces, dashes and underscores, capped at 30 characters.
func SafeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= maxSafeTitleLen {
			break
		}
	}

	stem := strings.TrimSpace(b.String())
	if stem == "" {
		stem = "video"
	}
	return stem
}

// findProducedFile locates the downloaded file for a session by its
// deterministic name stem. The extension is chosen by the extractor, so the
// lookup globs over it.
func findProducedFile(dir, stem string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// removeSessionFiles deletes everything the session produced, including
// partial downloads (.part files and the like). Best effort.
func removeSessionFiles(dir, stem string) {
	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		os.Remove(m)
	}
}
