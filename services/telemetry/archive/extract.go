// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package archive reads single entries out of untrusted zip archives.
//
// CI artifact archives come from the network and are treated as hostile
// input: extraction happens entirely in memory, symlinks and other
// non-regular entries are ignored, entry names are matched on their base
// name so nested or traversal-shaped paths cannot redirect the lookup,
// and decompressed output is size-capped.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxEntryBytes caps the decompressed size of a single extracted entry.
// Evidence payloads are small JSON documents; a larger entry is either
// the wrong file or a decompression bomb.
const maxEntryBytes = 8 << 20

// CorruptArchiveError reports an archive that could not be read: a
// broken central directory, a truncated stream, or an entry whose
// decompression fails partway through.
type CorruptArchiveError struct {
	Entry string // empty when the archive itself is unreadable
	Err   error
}

func (e *CorruptArchiveError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("corrupt artifact archive: %v", e.Err)
	}
	return fmt.Sprintf("corrupt artifact archive entry %q: %v", e.Entry, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

// ExtractEntry returns the decoded text of the named entry.
//
// The entry is located by exact match on its base name, so both
// "qa-metrics.json" and "report/qa-metrics.json" inside the archive
// satisfy entryName "qa-metrics.json". A missing entry is a normal
// outcome and reported as found=false with a nil error; only an
// unreadable archive produces a *CorruptArchiveError.
func ExtractEntry(archiveBytes []byte, entryName string) (content string, found bool, err error) {
	reader, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return "", false, &CorruptArchiveError{Err: err}
	}

	for _, file := range reader.File {
		if !file.Mode().IsRegular() {
			// Symlinks and directories are never followed or read.
			continue
		}
		if path.Base(cleanName(file.Name)) != entryName {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", false, &CorruptArchiveError{Entry: file.Name, Err: err}
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
		closeErr := rc.Close()
		if err != nil {
			return "", false, &CorruptArchiveError{Entry: file.Name, Err: err}
		}
		if closeErr != nil {
			// Close reports checksum mismatches on streaming readers.
			return "", false, &CorruptArchiveError{Entry: file.Name, Err: closeErr}
		}
		if len(data) > maxEntryBytes {
			return "", false, &CorruptArchiveError{
				Entry: file.Name,
				Err:   fmt.Errorf("entry exceeds %d byte limit", maxEntryBytes),
			}
		}
		return string(data), true, nil
	}

	return "", false, nil
}

// cleanName normalizes an entry name for matching. Windows-built
// archives occasionally carry backslash separators.
func cleanName(name string) string {
	return path.Clean(strings.ReplaceAll(name, `\`, "/"))
}
