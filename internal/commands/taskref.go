package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TaskRef identifies a task on the command line: either a row number from
// `taskr list` output or a task id (in full, or the prefix shown in
// listings).
type TaskRef struct {
	Num int    // 1-based row number, 0 when ID is set
	ID  string // task id or id prefix
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// maxRowDigits separates row numbers from numeric ids.
const maxRowDigits = 4

// ParseTaskRef parses a single task reference.
//
// Parsing rules:
// 1. Up to four digits → row number
// 2. Letters, digits, '-' and '_', starting with a letter or digit → id or
//    id prefix
// 3. Anything else → error: invalid task reference: <ref>
func ParseTaskRef(arg string) (TaskRef, error) {
	ref := strings.TrimSpace(arg)
	if ref == "" {
		return TaskRef{}, ErrTaskRefRequired
	}

	if isAllDigits(ref) && len(ref) <= maxRowDigits {
		num, err := strconv.Atoi(ref)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Num: num}, nil
	}

	for i, r := range ref {
		if !isIDRune(r) || (i == 0 && (r == '-' || r == '_')) {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
	}
	return TaskRef{ID: ref}, nil
}

// ParseTaskRefs parses one or more task references.
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, a := range args {
		ref, err := ParseTaskRef(a)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (r TaskRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strconv.Itoa(r.Num)
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIDRune(r rune) bool {
	return r == '-' || r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
