package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var sizeRegexp = regexp.MustCompile(`^(\d+)([kmgt])?$`)

const (
	B  Size = 1
	KB Size = 1 << 10
	MB Size = 1 << 20
	GB Size = 1 << 30
	TB Size = 1 << 40
)

// Size is a byte count which is parsed from and formatted to "20M"-like strings.
type Size int64

func ParseSize(value string) (Size, error) {
	match := sizeRegexp.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if len(match) < 2 {
		return 0, errors.Errorf(`expected expression matching %s, got %s`, sizeRegexp.String(), value)
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse amount")
	}

	unit := B
	if len(match) == 3 {
		switch match[2] {
		case "k":
			unit = KB
		case "m":
			unit = MB
		case "g":
			unit = GB
		case "t":
			unit = TB
		}
	}

	return unit * Size(amount), nil
}

func (s *Size) UnmarshalYAML(node *yaml.Node) (err error) {
	*s, err = ParseSize(node.Value)
	return
}

func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s Size) Bytes() int64 {
	return int64(s)
}

func (s Size) String() string {
	switch {
	case s >= TB && s%TB == 0:
		return fmt.Sprintf("%dT", int64(s/TB))
	case s >= GB && s%GB == 0:
		return fmt.Sprintf("%dG", int64(s/GB))
	case s >= MB && s%MB == 0:
		return fmt.Sprintf("%dM", int64(s/MB))
	case s >= KB && s%KB == 0:
		return fmt.Sprintf("%dK", int64(s/KB))
	default:
		return fmt.Sprintf("%d", int64(s))
	}
}
