// Package filter implements the ordered include/exclude rule set that decides
// which paths of a tree take part in a sync.
//
// Rule files hold one rule per line, "+PATTERN" to include and "-PATTERN" to
// exclude. The last matching rule wins and unmatched paths are included. The
// version-control metadata directory is always excluded.
package filter

import (
	"path"
	"strings"
)

// Verdict is the include/exclude decision for a path
type Verdict int

const (
	Include Verdict = iota
	Exclude
)

// String returns the verdict name
func (v Verdict) String() string {
	if v == Exclude {
		return "exclude"
	}
	return "include"
}

// MetadataDir is the version-control directory that is never synchronized
const MetadataDir = ".git"

// Rule is one parsed line of a rule file
type Rule struct {
	// Verdict applied when the pattern matches
	Verdict Verdict

	// Pattern without the leading "/" and trailing "/" markers
	Pattern string

	// DirOnly rules match directories and everything beneath them
	DirOnly bool

	// Anchored rules match from the tree root only
	Anchored bool

	// Line is the 1-based line number in the rule file
	Line int
}

// String renders the rule back into rule file syntax
func (r Rule) String() string {
	var b strings.Builder
	if r.Verdict == Exclude {
		b.WriteString("- ")
	} else {
		b.WriteString("+ ")
	}
	if r.Anchored {
		b.WriteByte('/')
	}
	b.WriteString(r.Pattern)
	if r.DirOnly {
		b.WriteByte('/')
	}
	return b.String()
}

// Rules is an ordered rule sequence, top of the file first
type Rules []Rule

// Decision is a verdict together with the index of the rule that produced it.
// Index is -1 for the default verdict and len(rules) for the built-in
// metadata exclusion.
type Decision struct {
	Verdict Verdict
	Index   int
}

// Excluded is a shorthand for Verdict == Exclude
func (d Decision) Excluded() bool {
	return d.Verdict == Exclude
}

var defaultDecision = Decision{Verdict: Include, Index: -1}

// Evaluate returns the verdict of the last rule matching rel, or Include when
// no rule matches. rel is slash separated and relative to the tree root.
func (rs Rules) Evaluate(rel string, isDir bool) Verdict {
	return rs.Decide(rel, isDir).Verdict
}

// Decide is Evaluate plus the index of the deciding rule
func (rs Rules) Decide(rel string, isDir bool) Decision {
	segs := split(rel)
	if len(segs) == 0 {
		return defaultDecision
	}
	if isMetadata(segs) {
		return Decision{Verdict: Exclude, Index: len(rs)}
	}

	d := defaultDecision
	for i, r := range rs {
		if r.matches(segs, isDir) {
			d = Decision{Verdict: r.Verdict, Index: i}
		}
	}
	return d
}

// Inherit computes the effective decision for rel given the effective
// decision of its parent directory. Beneath an excluded directory an entry is
// only included again by an include rule that appears after the rule that
// excluded the directory.
func (rs Rules) Inherit(parent Decision, rel string, isDir bool) Decision {
	own := rs.Decide(rel, isDir)
	if !parent.Excluded() {
		return own
	}
	if own.Index > parent.Index {
		return own
	}
	return parent
}

// Prunable reports whether a directory with effective decision d can be
// skipped entirely: it is excluded and no later include rule could bring
// any of its descendants back.
func (rs Rules) Prunable(d Decision) bool {
	if !d.Excluded() {
		return false
	}
	for i := d.Index + 1; i < len(rs); i++ {
		if rs[i].Verdict == Include {
			return false
		}
	}
	return true
}

// IsMetadata reports whether rel is, or lies beneath, the version-control
// metadata directory.
func IsMetadata(rel string) bool {
	return isMetadata(split(rel))
}

func isMetadata(segs []string) bool {
	for _, s := range segs {
		if s == MetadataDir {
			return true
		}
	}
	return false
}

// matches reports whether the rule matches the path itself or, for
// directory-only rules, one of its ancestor directories.
func (r Rule) matches(segs []string, isDir bool) bool {
	if r.matchSelf(segs, isDir) {
		return true
	}
	if !r.DirOnly {
		return false
	}
	for k := len(segs) - 1; k >= 1; k-- {
		if r.matchSelf(segs[:k], true) {
			return true
		}
	}
	return false
}

func (r Rule) matchSelf(segs []string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	ps := strings.Split(r.Pattern, "/")

	if r.Anchored {
		return matchSegments(ps, segs)
	}
	if len(ps) == 1 {
		ok, _ := path.Match(r.Pattern, segs[len(segs)-1])
		return ok
	}
	for i := range segs {
		if matchSegments(ps, segs[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against path segments. A "**"
// segment spans zero or more path segments.
func matchSegments(ps, segs []string) bool {
	if len(ps) == 0 {
		return len(segs) == 0
	}
	if ps[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(ps[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, _ := path.Match(ps[0], segs[0]); !ok {
		return false
	}
	return matchSegments(ps[1:], segs[1:])
}

func split(rel string) []string {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}
