package store

import (
	"path/filepath"
	"sync"
)

var (
	claimsMu sync.Mutex
	claims   = map[string]struct{}{}
)

// Claim marks path as held open by this process. Engines without their own
// lock file use it to refuse a second open of the same location. The
// returned release func is safe to call more than once.
func Claim(path string) (release func(), err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, OpenError(path, "resolve path", err)
	}

	claimsMu.Lock()
	defer claimsMu.Unlock()

	if _, held := claims[abs]; held {
		return nil, OpenError(path, "already held open", nil)
	}
	claims[abs] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			claimsMu.Lock()
			delete(claims, abs)
			claimsMu.Unlock()
		})
	}, nil
}
