package domain

import (
	"net/url"
	"path"
	"regexp"
)

var extPattern = regexp.MustCompile(`^\.\w+$`)

// FilterViewable returns the posts whose media the caller may view.
func FilterViewable(posts []Post) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.CanViewMedia {
			out = append(out, p)
		}
	}
	return out
}

// Extension returns the file extension of a source URL, ignoring the query
// string. ok is false when the path has no recognizable extension.
func Extension(source string) (ext string, ok bool) {
	u, err := url.Parse(source)
	if err != nil {
		return "", false
	}
	ext = path.Ext(u.Path)
	if !extPattern.MatchString(ext) {
		return "", false
	}
	return ext, true
}

// Qualify reports whether media should be downloaded and, if so, the file
// extension to store it under.
func Qualify(m Media) (ext string, ok bool) {
	if !m.CanView || !m.Kind.Supported() || m.Source == "" {
		return "", false
	}
	return Extension(m.Source)
}
