// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package merge creates and applies article patches and performs three-way
// merges between concurrent edits, using the sergi/go-diff patch engine.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/danielhkuo/ibis/models"
)

var (
	ErrPatchFailed     = errors.New("patch does not apply")
	ErrVersionNotFound = errors.New("edit version not found")
)

const (
	markerOurs     = "<<<<<<< ours"
	markerAncestor = "||||||| original"
	markerSplit    = "======="
	markerTheirs   = ">>>>>>> theirs"
)

// newEngine returns a patch engine that only applies hunks whose context is
// found verbatim. The default fuzzy matching would silently apply one edit
// over a different edit of the same lines.
func newEngine() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	dmp.MatchThreshold = 0.01
	dmp.MatchDistance = 1 << 30
	dmp.PatchDeleteThreshold = 0
	return dmp
}

// CreatePatch returns the textual patch turning old into new
func CreatePatch(old, new string) string {
	dmp := newEngine()
	patches := dmp.PatchMake(old, diffLines(dmp, old, new))
	return dmp.PatchToText(patches)
}

// diffLines diffs whole lines. Each distinct line is encoded as one rune;
// DiffLinesToChars encodes line indexes as decimal text, which mixes up
// lines once there are more than nine of them.
func diffLines(dmp *diffmatchpatch.DiffMatchPatch, old, new string) []diffmatchpatch.Diff {
	index := make(map[string]rune)
	var lines []string
	encode := func(text string) []rune {
		var runes []rune
		for _, line := range splitLines(text) {
			r, ok := index[line]
			if !ok {
				r = lineRune(len(lines))
				index[line] = r
				lines = append(lines, line)
			}
			runes = append(runes, r)
		}
		return runes
	}
	a, b := encode(old), encode(new)

	diffs := dmp.DiffMainRunes(a, b, false)
	for i, d := range diffs {
		var text strings.Builder
		for _, r := range d.Text {
			text.WriteString(lines[runeLine(r)])
		}
		diffs[i].Text = text.String()
	}
	return diffs
}

// lineRune maps a line index to a rune outside the surrogate range
func lineRune(i int) rune {
	r := rune(i)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func runeLine(r rune) int {
	if r >= 0xE000 {
		r -= 0x800
	}
	return int(r)
}

// ApplyPatch applies a patch created by CreatePatch. Every hunk must apply.
func ApplyPatch(text, patch string) (string, error) {
	dmp := newEngine()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", fmt.Errorf("parse patch: %w", err)
	}
	result, applied := dmp.PatchApply(patches, text)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("%w: hunk %d of %d", ErrPatchFailed, i+1, len(applied))
		}
	}
	return result, nil
}

// Merge combines the changes from ancestor to ours and from ancestor to
// theirs line by line. Changes to different lines are both kept, and an
// identical change on both sides is kept once. Overlapping changes are
// written between conflict markers holding ours, the ancestor lines and
// theirs, and clean is false.
func Merge(ancestor, ours, theirs string) (merged string, clean bool) {
	if ours == ancestor {
		return theirs, true
	}
	if theirs == ancestor || theirs == ours {
		return ours, true
	}

	dmp := newEngine()
	base := splitLines(ancestor)
	oursChanges := lineChanges(dmp, ancestor, ours)
	theirsChanges := lineChanges(dmp, ancestor, theirs)

	var b strings.Builder
	clean = true
	pos := 0
	for len(oursChanges) > 0 || len(theirsChanges) > 0 {
		var o, t []change
		var start, end int
		if len(theirsChanges) == 0 || len(oursChanges) > 0 && oursChanges[0].start <= theirsChanges[0].start {
			o, oursChanges = oursChanges[:1], oursChanges[1:]
			start, end = o[0].start, o[0].end
		} else {
			t, theirsChanges = theirsChanges[:1], theirsChanges[1:]
			start, end = t[0].start, t[0].end
		}

		// grow the hunk until no change of either side touches it
		for {
			if len(oursChanges) > 0 && oursChanges[0].overlaps(start, end) {
				o = append(o, oursChanges[0])
				end = max(end, oursChanges[0].end)
				oursChanges = oursChanges[1:]
				continue
			}
			if len(theirsChanges) > 0 && theirsChanges[0].overlaps(start, end) {
				t = append(t, theirsChanges[0])
				end = max(end, theirsChanges[0].end)
				theirsChanges = theirsChanges[1:]
				continue
			}
			break
		}

		writeLines(&b, base[pos:start])
		oursHunk := applyChanges(base, start, end, o)
		theirsHunk := applyChanges(base, start, end, t)
		switch {
		case len(t) == 0:
			b.WriteString(oursHunk)
		case len(o) == 0 || oursHunk == theirsHunk:
			b.WriteString(theirsHunk)
		default:
			clean = false
			writeSection(&b, markerOurs, oursHunk)
			writeSection(&b, markerAncestor, strings.Join(base[start:end], ""))
			writeSection(&b, markerSplit, theirsHunk)
			b.WriteString(markerTheirs)
			b.WriteString("\n")
		}
		pos = end
	}
	writeLines(&b, base[pos:])
	return b.String(), clean
}

// change replaces the ancestor lines [start, end) with lines
type change struct {
	start, end int
	lines      []string
}

// overlaps reports whether c cannot be applied independently of a hunk
// covering [start, end). Insertions at a hunk boundary are ambiguous in
// order and count as overlapping.
func (c change) overlaps(start, end int) bool {
	if c.start < end {
		return true
	}
	return c.start == end && (c.start == c.end || start == end)
}

// lineChanges lists the line ranges of base that other replaces
func lineChanges(dmp *diffmatchpatch.DiffMatchPatch, base, other string) []change {
	diffs := diffLines(dmp, base, other)

	var changes []change
	var current *change
	pos := 0
	for _, d := range diffs {
		n := splitLines(d.Text)
		if d.Type == diffmatchpatch.DiffEqual {
			if current != nil {
				changes = append(changes, *current)
				current = nil
			}
			pos += len(n)
			continue
		}
		if current == nil {
			current = &change{start: pos, end: pos}
		}
		if d.Type == diffmatchpatch.DiffDelete {
			current.end += len(n)
			pos += len(n)
		} else {
			current.lines = append(current.lines, n...)
		}
	}
	if current != nil {
		changes = append(changes, *current)
	}
	return changes
}

func applyChanges(base []string, start, end int, changes []change) string {
	var b strings.Builder
	pos := start
	for _, c := range changes {
		writeLines(&b, base[pos:c.start])
		writeLines(&b, c.lines)
		pos = c.end
	}
	writeLines(&b, base[pos:end])
	return b.String()
}

// splitLines splits text after every newline. A final line without a
// newline is kept.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(b *strings.Builder, lines []string) {
	for _, l := range lines {
		b.WriteString(l)
	}
}

func writeSection(b *strings.Builder, marker, text string) {
	b.WriteString(marker)
	b.WriteString("\n")
	b.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
}

// GenerateVersion rebuilds the article text at version by replaying edits in
// order, starting from the empty text.
func GenerateVersion(edits []models.Edit, version models.EditVersion) (string, error) {
	if version == models.DefaultEditVersion() {
		return "", nil
	}
	text := ""
	for _, e := range edits {
		var err error
		text, err = ApplyPatch(text, e.Diff)
		if err != nil {
			return "", fmt.Errorf("replay edit %s: %w", e.Hash.Hash(), err)
		}
		if e.Hash == version {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrVersionNotFound, version.Hash())
}
