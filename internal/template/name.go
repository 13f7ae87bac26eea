package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedName is returned for names without a "(<digits>)" build stamp.
var ErrMalformedName = errors.New("template name does not match \"<name> (<digits>)\"")

// matches "<base> (<digits>)" at the start of the name
var namePattern = regexp.MustCompile(`^(.+?) \((\d+)\)`)

func parseName(name string) (base, stamp string, err error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("%q: %w", name, ErrMalformedName)
	}
	return m[1], m[2], nil
}

// BaseName returns the name without its build stamp, underscores replaced
// by spaces: "Ubuntu_24.04-Template (202405260033)" -> "Ubuntu 24.04-Template".
func BaseName(t Template) (string, error) {
	base, _, err := parseName(t.Name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " ")), nil
}

// BuildStamp returns the digits between the parentheses.
func BuildStamp(t Template) (string, error) {
	_, stamp, err := parseName(t.Name)
	return stamp, err
}
