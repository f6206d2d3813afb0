package reap

import (
	"math"
	"os"
	"time"

	"github.com/adm-tools/profreap/internal/profile"
)

// epoch is the sentinel for the epoch fallback policy: a profile with
// no usable timestamp becomes maximally old.
var epoch = time.Unix(0, 0).UTC()

// resolveLastUse picks the profile's last-use instant from the
// available signals, first match wins:
//
//  1. mod-time of the local directory, when it exists on disk — the
//     most reliable signal, it reflects actual filesystem activity
//     rather than a directory-service attribute that may be stale or
//     absent for some account types;
//  2. the last-use attribute;
//  3. the last-download attribute;
//  4. the last-upload attribute.
//
// Returns false when none is available.
func resolveLastUse(p profile.Profile, modTime func(string) (time.Time, bool)) (time.Time, bool) {
	if t, ok := modTime(p.LocalPath); ok {
		return t, true
	}
	for _, t := range []time.Time{p.LastUse, p.LastDownload, p.LastUpload} {
		if !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

// FSModTime is the real-filesystem ModTime lookup: the directory's
// last-modified time, or false when it does not exist (or is not a
// directory).
func FSModTime(path string) (time.Time, bool) {
	if path == "" {
		return time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// ageDays is the whole number of days between lastUse and now,
// floored. Both instants are absolute; the subtraction has no
// timezone component.
func ageDays(now, lastUse time.Time) int {
	return int(math.Floor(now.Sub(lastUse).Hours() / 24))
}
