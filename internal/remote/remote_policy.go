package remote

import (
	"fmt"
	"strings"
)

// ExistsPolicy decides what an upload does when the destination file already exists.
type ExistsPolicy int

const (
	// ExistsNoCheck uploads without checking the destination first
	ExistsNoCheck ExistsPolicy = iota
	// ExistsSkip leaves an existing destination untouched
	ExistsSkip
	// ExistsOverwrite replaces an existing destination
	ExistsOverwrite
	// ExistsResume appends the missing tail when the destination is shorter than the source
	ExistsResume
	// ExistsAppend appends the whole source to an existing destination
	ExistsAppend
)

var existsPolicyNames = map[ExistsPolicy]string{
	ExistsNoCheck:   "nocheck",
	ExistsSkip:      "skip",
	ExistsOverwrite: "overwrite",
	ExistsResume:    "resume",
	ExistsAppend:    "append",
}

func (p ExistsPolicy) String() string {
	if name, ok := existsPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ExistsPolicy(%d)", int(p))
}

// ParseExistsPolicy parses the string form of an ExistsPolicy
func ParseExistsPolicy(s string) (ExistsPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for policy, name := range existsPolicyNames {
		if name == s {
			return policy, nil
		}
	}
	return ExistsNoCheck, fmt.Errorf("invalid exists policy %q", s)
}

// VerifyPolicy is a set of flags controlling post-transfer verification.
// Any non-zero policy enables verification.
type VerifyPolicy int

const (
	VerifyNone VerifyPolicy = 0
	// VerifyChecksum compares size and checksum after the transfer and only logs a mismatch
	VerifyChecksum VerifyPolicy = 1 << (iota - 1)
	// VerifyRetry re-transfers the file when verification fails
	VerifyRetry
	// VerifyDelete deletes the remote file when verification finally fails and fails the upload with ErrVerifyFailed
	VerifyDelete
	// VerifyThrow fails the upload with ErrVerifyFailed when verification finally fails
	VerifyThrow
)

const maxVerifyAttempts = 3

var verifyFlagNames = []struct {
	flag VerifyPolicy
	name string
}{
	{VerifyChecksum, "checksum"},
	{VerifyRetry, "retry"},
	{VerifyDelete, "delete"},
	{VerifyThrow, "throw"},
}

// Has reports whether all bits of flag are set
func (p VerifyPolicy) Has(flag VerifyPolicy) bool {
	return flag != VerifyNone && p&flag == flag
}

func (p VerifyPolicy) String() string {
	if p == VerifyNone {
		return "none"
	}
	parts := make([]string, 0, len(verifyFlagNames))
	for _, f := range verifyFlagNames {
		if p.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "+")
}

// ParseVerifyPolicy parses a "+" or "," separated list of verify flags, e.g. "retry+throw".
// "none" and the empty string parse to VerifyNone.
func ParseVerifyPolicy(s string) (VerifyPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return VerifyNone, nil
	}

	var policy VerifyPolicy
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		part = strings.TrimSpace(part)
		found := false
		for _, f := range verifyFlagNames {
			if f.name == part {
				policy |= f.flag
				found = true
				break
			}
		}
		if !found {
			return VerifyNone, fmt.Errorf("invalid verify policy %q", part)
		}
	}
	return policy, nil
}
