package ws

import (
	"net/url"
	"path"
	"strings"
)

// TerminalProject reports whether p has the shape .../terminal/{projectId}
// and returns the unescaped project id. Any other path is a collaboration
// connection. Only the last two segments are checked; Server routes /ws and
// the paths below it, so over HTTP this means /ws[/...]/terminal/{projectId}.
func TerminalProject(p string) (string, bool) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, "/")

	dir, id := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if id == "" || (dir != "terminal" && !strings.HasSuffix(dir, "/terminal")) {
		return "", false
	}

	id, err := url.PathUnescape(id)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}
