// Package names validates the caller-supplied identifiers that become
// storage key segments: topics, groups, consumers, lock keys, and rate
// limiter keys.
package names

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalid reports an identifier that cannot be used as a key segment.
var ErrInvalid = errors.New("names: invalid name")

// Pattern is the accepted identifier shape. '/' is excluded because
// identifiers are joined into '/'-separated keys; a slash in one identifier
// would place its keys inside another identifier's range.
const Pattern = `^[a-zA-Z0-9][a-zA-Z0-9._:-]{0,127}$`

var re = regexp.MustCompile(Pattern)

// Check validates one identifier. kind labels it in the error message.
func Check(kind, name string) error {
	if !re.MatchString(name) {
		return fmt.Errorf("%w: %s %q must match %s", ErrInvalid, kind, name, Pattern)
	}
	return nil
}
