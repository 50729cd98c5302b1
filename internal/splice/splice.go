package splice

import (
	"errors"
	"strings"
)

// ErrMarkersNotFound matches any MarkersNotFoundError via errors.Is.
var ErrMarkersNotFound = errors.New("could not find expected start/end markers")

// ErrEmptyMarker is returned when a marker is the empty string, which would
// otherwise match at offset 0 of every document.
var ErrEmptyMarker = errors.New("marker must not be empty")

// MarkersNotFoundError reports that the start marker, the end marker, or both
// are absent. The message is the same whichever marker is missing; the
// indices are kept for logging.
type MarkersNotFoundError struct {
	StartIndex int
	EndIndex   int
}

func (e *MarkersNotFoundError) Error() string { return ErrMarkersNotFound.Error() }

func (e *MarkersNotFoundError) Is(target error) bool { return target == ErrMarkersNotFound }

// Markers is the literal pair of search anchors.
type Markers struct {
	Start string
	End   string
}

func (m Markers) validate() error {
	if m.Start == "" || m.End == "" {
		return ErrEmptyMarker
	}
	return nil
}

// Span holds the byte offsets of the first occurrence of each marker.
type Span struct {
	Start int
	End   int
}

// Ordered reports whether the start marker begins at or before the end marker.
func (s Span) Ordered() bool { return s.Start <= s.End }

// Locate finds the first occurrence of each marker using exact,
// case-sensitive substring search.
func Locate(text string, m Markers) (Span, error) {
	if err := m.validate(); err != nil {
		return Span{}, err
	}
	sp := Span{
		Start: strings.Index(text, m.Start),
		End:   strings.Index(text, m.End),
	}
	if sp.Start == -1 || sp.End == -1 {
		return sp, &MarkersNotFoundError{StartIndex: sp.Start, EndIndex: sp.End}
	}
	return sp, nil
}

// Apply returns text[:sp.Start] + replacement + text[sp.End:]. The start
// marker is cut from the output and the end marker opens the suffix.
func Apply(text string, sp Span, replacement string) string {
	var b strings.Builder
	b.Grow(sp.Start + len(replacement) + len(text) - sp.End)
	b.WriteString(text[:sp.Start])
	b.WriteString(replacement)
	b.WriteString(text[sp.End:])
	return b.String()
}

// ReplaceBetween drops everything from the start of startMarker up to (but
// not including) endMarker and puts replacement in its place.
func ReplaceBetween(text, startMarker, endMarker, replacement string) (string, error) {
	sp, err := Locate(text, Markers{Start: startMarker, End: endMarker})
	if err != nil {
		return "", err
	}
	return Apply(text, sp, replacement), nil
}
