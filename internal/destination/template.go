// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package destination renders root-folder, season-folder, and filename
// templates against a sanitized match context and guards the result
// against path traversal.
package destination

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTemplate is returned when a template references a missing key or is
// malformed.
var ErrTemplate = errors.New("template error")

// RenderTemplate substitutes {key} and {key:NN} placeholders using the
// lookup function. A :NN suffix zero-pads numeric values to NN digits;
// non-numeric values are left unpadded. A missing key is an error, not an
// empty substitution.
func RenderTemplate(tmpl string, lookup func(key string) (string, bool)) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder at offset %d", ErrTemplate, i)
		}
		placeholder := tmpl[i+1 : i+end]
		i += end + 1

		key := placeholder
		width := 0
		if colon := strings.IndexByte(placeholder, ':'); colon >= 0 {
			key = placeholder[:colon]
			w, err := strconv.Atoi(placeholder[colon+1:])
			if err != nil || w < 0 {
				return "", fmt.Errorf("%w: bad pad width in {%s}", ErrTemplate, placeholder)
			}
			width = w
		}
		if key == "" {
			return "", fmt.Errorf("%w: empty placeholder", ErrTemplate)
		}

		value, ok := lookup(key)
		if !ok {
			return "", fmt.Errorf("%w: missing key %q", ErrTemplate, key)
		}

		if width > 0 {
			if n, err := strconv.Atoi(value); err == nil {
				value = fmt.Sprintf("%0*d", width, n)
			}
		}
		b.WriteString(value)
	}

	return b.String(), nil
}
