// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package linker materializes matched files at their destinations via
// hardlink, copy, or symlink, with overwrite policy and conflict handling.
package linker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/tomtom215/linesman/internal/fingerprint"
	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
)

var (
	// ErrDestinationConflict means the destination exists with different
	// content and the overwrite policy keeps it.
	ErrDestinationConflict = errors.New("destination conflict")

	// ErrCrossDeviceLink means a hardlink crossed filesystems and fallback
	// is disabled.
	ErrCrossDeviceLink = errors.New("cross-device link")

	// ErrPermissionDenied wraps EACCES/EPERM from any link step.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSourceVanished means the source disappeared between discovery and
	// the link action.
	ErrSourceVanished = errors.New("source vanished")
)

// Specificity ranks an incoming file for overwrite decisions: lower
// pattern priority values and exact session tokens replace weaker links.
type Specificity struct {
	PatternPriority int
	ExactSession    bool
}

// Beats reports whether s should replace an existing destination written
// with other. Strictly lower priority wins; at equal priority an exact
// session token beats a fuzzy one.
func (s Specificity) Beats(other Specificity) bool {
	if s.PatternPriority != other.PatternPriority {
		return s.PatternPriority < other.PatternPriority
	}
	return s.ExactSession && !other.ExactSession
}

// Outcome describes what the linker did.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeNoop     Outcome = "noop"     // destination already correct
	OutcomeReplaced Outcome = "replaced" // higher specificity overwrote
	OutcomeKept     Outcome = "kept"     // existing kept per policy
)

// Options configure one link action.
type Options struct {
	Mode models.LinkMode

	// SkipExisting keeps any existing destination regardless of
	// specificity.
	SkipExisting bool

	// FallbackOnCrossDevice retries a failed cross-filesystem hardlink as
	// a copy.
	FallbackOnCrossDevice bool

	// Incoming ranks this file against whatever wrote the destination
	// before (from the processed record).
	Incoming Specificity
	Existing *Specificity
}

// Link materializes source at dest according to the options.
func Link(source, dest string, opts Options) (Outcome, error) {
	if _, err := os.Lstat(source); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSourceVanished, source)
		}
		return "", classifyFsErr(err)
	}

	if info, err := os.Lstat(dest); err == nil {
		same, err := sameContent(source, dest, info, opts.Mode)
		if err != nil {
			return "", err
		}
		if same {
			return OutcomeNoop, nil
		}

		// Differing destination: default keep; replace only on strictly
		// higher specificity.
		if opts.SkipExisting {
			return OutcomeKept, nil
		}
		if opts.Existing == nil {
			// Unknown provenance: refuse to clobber.
			return "", fmt.Errorf("%w: %s (unknown origin)", ErrDestinationConflict, dest)
		}
		if !opts.Incoming.Beats(*opts.Existing) {
			return OutcomeKept, nil
		}

		if err := replaceAtomic(source, dest, opts); err != nil {
			return "", err
		}
		metrics.LinksCreated.WithLabelValues(string(opts.Mode)).Inc()
		return OutcomeReplaced, nil
	} else if !os.IsNotExist(err) {
		return "", classifyFsErr(err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", classifyFsErr(err)
	}
	if err := materialize(source, dest, opts); err != nil {
		return "", err
	}
	metrics.LinksCreated.WithLabelValues(string(opts.Mode)).Inc()
	return OutcomeCreated, nil
}

// materialize performs the action at a non-existent destination.
func materialize(source, dest string, opts Options) error {
	switch opts.Mode {
	case models.LinkModeHardlink:
		err := os.Link(source, dest)
		if err == nil {
			return nil
		}
		if isCrossDevice(err) {
			if opts.FallbackOnCrossDevice {
				logging.Warn().Str("source", source).Str("dest", dest).Msg("Cross-device hardlink, falling back to copy")
				return copyAtomic(source, dest)
			}
			return fmt.Errorf("%w: %s -> %s", ErrCrossDeviceLink, source, dest)
		}
		return classifyFsErr(err)

	case models.LinkModeCopy:
		return copyAtomic(source, dest)

	case models.LinkModeSymlink:
		if err := os.Symlink(source, dest); err != nil {
			return classifyFsErr(err)
		}
		return nil
	}
	return fmt.Errorf("unknown link mode %q", opts.Mode)
}

// replaceAtomic swaps a differing destination for the incoming file
// without a window where the destination is missing: the new content lands
// at a sibling temp name and renames over the old file.
func replaceAtomic(source, dest string, opts Options) error {
	dir := filepath.Dir(dest)
	tmp := filepath.Join(dir, "."+filepath.Base(dest)+".in")

	switch opts.Mode {
	case models.LinkModeHardlink:
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			return classifyFsErr(err)
		}
		if err := os.Link(source, tmp); err != nil {
			if isCrossDevice(err) && opts.FallbackOnCrossDevice {
				if err := copyTo(source, tmp); err != nil {
					return err
				}
			} else if isCrossDevice(err) {
				return fmt.Errorf("%w: %s -> %s", ErrCrossDeviceLink, source, dest)
			} else {
				return classifyFsErr(err)
			}
		}
	case models.LinkModeCopy:
		if err := copyTo(source, tmp); err != nil {
			return err
		}
	case models.LinkModeSymlink:
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			return classifyFsErr(err)
		}
		if err := os.Symlink(source, tmp); err != nil {
			return classifyFsErr(err)
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return classifyFsErr(err)
	}
	return nil
}

// copyAtomic copies into a sibling temp file then renames into place.
func copyAtomic(source, dest string) error {
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".in")
	if err := copyTo(source, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return classifyFsErr(err)
	}
	return nil
}

func copyTo(source, tmp string) error {
	in, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceVanished, source)
		}
		return classifyFsErr(err)
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return classifyFsErr(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return classifyFsErr(err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return classifyFsErr(err)
	}
	return nil
}

// sameContent reports whether dest already carries the source content:
// device+inode identity for hardlinks, the link target for symlinks (a
// non-symlink destination never counts as the same), digest equality
// otherwise.
func sameContent(source, dest string, destInfo os.FileInfo, mode models.LinkMode) (bool, error) {
	if mode == models.LinkModeHardlink {
		srcInfo, err := os.Stat(source)
		if err != nil {
			return false, classifyFsErr(err)
		}
		srcSys, ok1 := srcInfo.Sys().(*syscall.Stat_t)
		dstSys, ok2 := destInfo.Sys().(*syscall.Stat_t)
		if ok1 && ok2 {
			return srcSys.Dev == dstSys.Dev && srcSys.Ino == dstSys.Ino, nil
		}
	}

	if mode == models.LinkModeSymlink {
		if destInfo.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(dest)
			if err != nil {
				return false, classifyFsErr(err)
			}
			return target == source, nil
		}
		return false, nil
	}

	srcDigest, err := fingerprint.File(source)
	if err != nil {
		if errors.Is(err, fingerprint.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrSourceVanished, source)
		}
		return false, err
	}
	dstDigest, err := fingerprint.File(dest)
	if err != nil {
		return false, err
	}
	return srcDigest == dstDigest, nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func classifyFsErr(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
