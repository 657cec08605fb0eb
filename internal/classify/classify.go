// Package classify implements stateless predicates over a terminal input
// chunk answering whether it looks like IME-produced text, and if so, which
// script it most likely belongs to.
package classify

import "unicode/utf8"

// Result is the outcome of classifying a chunk of terminal input.
type Result int

const (
	// Regular is ordinary ASCII keystrokes and control bytes.
	Regular Result = iota
	// IME is a burst of text an input method editor produced.
	IME
)

func (r Result) String() string {
	if r == IME {
		return "IME"
	}
	return "Regular"
}

// Script names the writing system a classified IME chunk most likely
// belongs to, per the first-match-wins range table in scriptRanges.
type Script int

const (
	Unknown Script = iota
	Vietnamese
	Chinese
	Japanese
	Korean
	Thai
	Arabic
	Devanagari
)

func (s Script) String() string {
	switch s {
	case Vietnamese:
		return "Vietnamese"
	case Chinese:
		return "Chinese"
	case Japanese:
		return "Japanese"
	case Korean:
		return "Korean"
	case Thai:
		return "Thai"
	case Arabic:
		return "Arabic"
	case Devanagari:
		return "Devanagari"
	default:
		return "Unknown"
	}
}

type codeRange struct {
	lo, hi rune
}

// combiningMarks is checked independently of script, per §4.1(b).
var combiningMarks = codeRange{0x0300, 0x036F}

// scriptRanges is consulted in order; the first script whose ranges contain
// the rune wins. Vietnamese additionally matches the combining-mark range,
// since Vietnamese composition is frequently base-letter-plus-tone-mark.
var scriptRanges = []struct {
	script Script
	ranges []codeRange
}{
	{Vietnamese, []codeRange{
		{0x00C0, 0x00FF},
		{0x0102, 0x0103},
		{0x0110, 0x0111},
		{0x0128, 0x0129},
		{0x0168, 0x0169},
		{0x01A0, 0x01B0},
		{0x1EA0, 0x1EF9},
		combiningMarks,
	}},
	{Chinese, []codeRange{
		{0x4E00, 0x9FFF},
		{0x3400, 0x4DBF},
		{0xF900, 0xFAFF},
		{0x2F00, 0x2FDF},
	}},
	{Japanese, []codeRange{
		{0x3040, 0x309F},
		{0x30A0, 0x30FF},
		{0x31F0, 0x31FF},
		{0xFF65, 0xFF9F},
	}},
	{Korean, []codeRange{
		{0xAC00, 0xD7AF},
		{0x1100, 0x11FF},
		{0xA960, 0xA97F},
		{0x3130, 0x318F},
	}},
	{Thai, []codeRange{{0x0E00, 0x0E7F}}},
	{Arabic, []codeRange{{0x0600, 0x06FF}}},
	{Devanagari, []codeRange{{0x0900, 0x097F}}},
}

func inRange(r rune, cr codeRange) bool {
	return r >= cr.lo && r <= cr.hi
}

// DetectScript reports the first script in scriptRanges whose range table
// contains a rune of text, and whether any script matched at all.
func DetectScript(text string) (Script, bool) {
	for _, entry := range scriptRanges {
		for _, r := range text {
			for _, cr := range entry.ranges {
				if inRange(r, cr) {
					return entry.script, true
				}
			}
		}
	}
	return Unknown, false
}

func hasCombiningMark(text string) bool {
	for _, r := range text {
		if inRange(r, combiningMarks) {
			return true
		}
	}
	return false
}

// Classify reports whether text looks like IME-produced output. A chunk is
// IME if it contains a multi-byte UTF-8 code point, a combining mark, or a
// code point within one of the script ranges in scriptRanges. An empty chunk,
// a single ASCII byte, or a chunk that is not valid UTF-8 is always Regular,
// so malformed input is forwarded verbatim instead of being buffered.
func Classify(text string) Result {
	if len(text) == 0 {
		return Regular
	}
	if len(text) == 1 && text[0] < 0x80 {
		return Regular
	}
	if !utf8.ValidString(text) {
		return Regular
	}

	// (a) byte length exceeds code-point length implies at least one
	// multi-byte UTF-8 sequence is present.
	if len(text) > utf8.RuneCountInString(text) {
		return IME
	}
	// (b) a combining mark, even standing alone as a single rune (rare on
	// a raw terminal read, but cheap to check).
	if hasCombiningMark(text) {
		return IME
	}
	// (c) any code point within a known script range.
	if _, ok := DetectScript(text); ok {
		return IME
	}
	return Regular
}
