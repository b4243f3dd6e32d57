// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package destination

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	// ErrUnsafePath is returned when a rendered path escapes the
	// destination root or yields an empty segment.
	ErrUnsafePath = errors.New("unsafe destination path")

	// ErrNameTooLong is returned when a rendered segment exceeds the
	// platform-safe length.
	ErrNameTooLong = errors.New("destination name too long")
)

// maxSegmentBytes is the platform-safe per-segment limit. 240 leaves room
// for suffixes under the common 255-byte filesystem bound.
const maxSegmentBytes = 240

// Templates are the three templates a destination renders through.
type Templates struct {
	RootFolder   string
	SeasonFolder string
	Filename     string
}

// Context is the fully resolved key set exposed to templates: the
// enumerated match context plus any regex capture groups.
type Context map[string]string

// Builder renders destination paths under a fixed root.
type Builder struct {
	root string
}

// NewBuilder creates a builder rooted at destinationDir.
func NewBuilder(destinationDir string) *Builder {
	return &Builder{root: filepath.Clean(destinationDir)}
}

// Root returns the destination root.
func (b *Builder) Root() string {
	return b.root
}

// Build renders the three templates against the context and joins them
// under the root. Each rendered segment is sanitized; the joined path must
// stay strictly under the root after normalization.
func (b *Builder) Build(tpl Templates, ctx Context) (string, error) {
	lookup := func(key string) (string, bool) {
		v, ok := ctx[key]
		return v, ok
	}

	segments := make([]string, 0, 3)
	for _, tmpl := range []string{tpl.RootFolder, tpl.SeasonFolder, tpl.Filename} {
		rendered, err := RenderTemplate(tmpl, lookup)
		if err != nil {
			return "", err
		}
		sanitized, err := SanitizeSegment(rendered)
		if err != nil {
			return "", err
		}
		segments = append(segments, sanitized)
	}

	dest := filepath.Join(append([]string{b.root}, segments...)...)

	// Reject any rendered path that escapes the destination root after
	// normalization.
	rel, err := filepath.Rel(b.root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %q", ErrUnsafePath, dest, b.root)
	}

	return dest, nil
}

// SanitizeSegment makes one rendered path segment filesystem-safe: control
// characters stripped, path separators replaced by a single space,
// whitespace collapsed, length bounded. Sanitizing an already-sanitized
// segment is a fixed point. Explicit casing from the metadata is
// preserved.
func SanitizeSegment(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			// dropped
		case r == '/' || r == '\\' || r == ':':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	if collapsed == "" || collapsed == "." || collapsed == ".." {
		return "", fmt.Errorf("%w: segment %q sanitizes to nothing", ErrUnsafePath, s)
	}
	if len(collapsed) > maxSegmentBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(collapsed))
	}
	return collapsed, nil
}
