package snapshot

import (
	"os"
	"strings"
)

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// injectToken inserts an HTTPS basic-auth token into a git remote URL,
// e.g. "https://github.com/x/y" -> "https://<token>@github.com/x/y".
func injectToken(gitURL, token string) string {
	if !strings.HasPrefix(gitURL, "https://") {
		return gitURL
	}
	return "https://" + token + "@" + strings.TrimPrefix(gitURL, "https://")
}
