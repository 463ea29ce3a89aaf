package fetch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

var (
	webArchive = regexp.MustCompile(`archive\.org`)
	snapshotID = regexp.MustCompile(`/\d{14}/`)
)

// RewriteURL percent-escapes every byte of raw except ASCII letters,
// digits, "_.-" and the separators ":/". Web archive snapshot URLs are
// pointed at the raw capture ("/20060102150405id_/").
func RewriteURL(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if urlSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	url := b.String()

	if webArchive.MatchString(url) {
		if loc := snapshotID.FindStringIndex(url); loc != nil {
			url = url[:loc[1]-1] + "id_/" + url[loc[1]:]
		}
	}
	return url
}

func urlSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("_.-:/", c) >= 0
}

// Rewrite re-keys every record by its rewritten URL.
func Rewrite[V any](ctx context.Context, key string, value V, emit pipeline.Emit[V]) error {
	return emit(RewriteURL(key), value)
}

// Filter keeps records whose key matches pattern at its start. Records
// with an empty key are always dropped; an empty pattern keeps the rest.
func Filter[V any](pattern string) (pipeline.PipeFunc[V, V], error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(`^(?:` + pattern + `)`); err != nil {
			return nil, fmt.Errorf("%w: url pattern: %v", internalerr.ErrInvalidConfig, err)
		}
	}
	return func(ctx context.Context, key string, value V, emit pipeline.Emit[V]) error {
		if key == "" || (re != nil && !re.MatchString(key)) {
			return nil
		}
		return emit(key, value)
	}, nil
}
