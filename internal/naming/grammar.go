// Package naming implements the ISMIP6 path naming grammar: tokenizing
// object keys into identifying metadata and repairing the documented set of
// naming defects.
package naming

import (
	"regexp"
	"strings"
)

// Tokens are the raw identifying segments of one object key.
type Tokens struct {
	IceSheet    string
	Institution string
	Model       string
	Experiment  string
	Variable    string
	TimeRange   string
}

// Expected key shape:
//
//	[bucket/]Projection-{ICE_SHEET}/{INSTITUTION}/{MODEL}/{EXPERIMENT}/{VARIABLE}_... .nc
//
// The variable is everything in the filename up to the first underscore; an
// optional trailing _YYYY-YYYY token records temporal coverage.
var (
	projectionRe = regexp.MustCompile(`^Projection-([A-Z]+)$`)
	timeRangeRe  = regexp.MustCompile(`_(\d{4}-\d{4})\.nc$`)
)

// Tokenize splits an object key into raw tokens. It returns false when the
// key does not follow the directory convention at all; token values are not
// validated against any vocabulary here.
func Tokenize(key string) (Tokens, bool) {
	if !strings.HasSuffix(key, ".nc") {
		return Tokens{}, false
	}

	segments := strings.Split(strings.Trim(key, "/"), "/")

	// Locate the Projection-{X} segment; anything before it (bucket name,
	// dataset root) is ignored.
	start := -1
	var iceSheet string
	for i, seg := range segments {
		if m := projectionRe.FindStringSubmatch(seg); m != nil {
			start = i
			iceSheet = m[1]
			break
		}
	}
	if start == -1 || len(segments)-start != 5 {
		return Tokens{}, false
	}

	filename := segments[start+4]
	variable, _, found := strings.Cut(filename, "_")
	if !found {
		// Filenames without underscores carry no model/experiment echo; the
		// variable is the bare basename.
		variable = strings.TrimSuffix(filename, ".nc")
	}
	if variable == "" {
		return Tokens{}, false
	}

	t := Tokens{
		IceSheet:    iceSheet,
		Institution: segments[start+1],
		Model:       segments[start+2],
		Experiment:  segments[start+3],
		Variable:    variable,
	}
	if m := timeRangeRe.FindStringSubmatch(filename); m != nil {
		t.TimeRange = m[1]
	}
	return t, true
}
