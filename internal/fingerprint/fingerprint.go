// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fingerprint implements content-based torrent matching. The
// info-hash of a torrent differs per tracker because private trackers alter
// the info dictionary, so cross-tracker identity is derived from the file
// structure instead: total size, file count, largest file size and an
// optional hash over the full file list.
package fingerprint

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// File is the minimal view of a torrent file needed for fingerprinting.
type File struct {
	Name string
	Size uint64
}

// ContentFingerprint identifies a torrent payload independently of its
// info-hash.
type ContentFingerprint struct {
	// TotalSize is the sum of all file sizes and the primary matching key.
	TotalSize uint64

	// FileCount is the number of files in the torrent.
	FileCount int

	// LargestFileSize is the size of the biggest file.
	LargestFileSize uint64

	// FilesHash is the hex SHA-1 over the name-sorted file list, or empty
	// when the fingerprint was built without file details.
	FilesHash string
}

// FromFiles builds a fingerprint from a full file listing, including the
// strict FilesHash. The hash input is, for each file in lexicographic name
// order, the raw name bytes followed by the size as 8 little-endian bytes,
// so the result does not depend on the order files were reported in.
func FromFiles(files []File) ContentFingerprint {
	var total, largest uint64
	for _, f := range files {
		total += f.Size
		if f.Size > largest {
			largest = f.Size
		}
	}

	fp := ContentFingerprint{
		TotalSize:       total,
		FileCount:       len(files),
		LargestFileSize: largest,
	}

	if len(files) > 0 {
		sorted := make([]File, len(files))
		copy(sorted, files)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

		h := sha1.New()
		var size [8]byte
		for _, f := range sorted {
			h.Write([]byte(f.Name))
			binary.LittleEndian.PutUint64(size[:], f.Size)
			h.Write(size[:])
		}
		fp.FilesHash = hex.EncodeToString(h.Sum(nil))
	}

	return fp
}

// FromSize builds a fallback fingerprint when no file listing is available,
// leaving FilesHash empty.
func FromSize(totalSize uint64, fileCount int, largestFileSize uint64) ContentFingerprint {
	return ContentFingerprint{
		TotalSize:       totalSize,
		FileCount:       fileCount,
		LargestFileSize: largestFileSize,
	}
}

// Matches compares two fingerprints with a layered strategy: total size is
// an absolute filter, FilesHash is decisive when both sides carry one, and
// otherwise largest file size and file count grade the confidence.
func (fp ContentFingerprint) Matches(other ContentFingerprint) MatchResult {
	if fp.TotalSize != other.TotalSize {
		return NoMatch
	}

	if fp.FilesHash != "" && other.FilesHash != "" {
		if fp.FilesHash == other.FilesHash {
			return ExactMatch
		}
		// Same size but different file layout is different content.
		return NoMatch
	}

	if fp.LargestFileSize != other.LargestFileSize {
		return LowConfidence
	}

	// Tolerate up to two extra or missing metadata files (.nfo, .txt).
	diff := fp.FileCount - other.FileCount
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff > 2:
		return LowConfidence
	case diff == 0:
		return HighConfidence
	default:
		return MediumConfidence
	}
}

// MatchResult grades how well two fingerprints correspond.
type MatchResult int

const (
	NoMatch MatchResult = iota
	LowConfidence
	MediumConfidence
	HighConfidence
	ExactMatch
)

// IsMatch reports whether the result is usable for reseeding. Low confidence
// is excluded: only size agrees, which is not enough to hand a torrent to a
// client.
func (r MatchResult) IsMatch() bool {
	return r >= MediumConfidence
}

// Confidence returns the score in [0,1] associated with the result.
func (r MatchResult) Confidence() float64 {
	switch r {
	case LowConfidence:
		return 0.3
	case MediumConfidence:
		return 0.7
	case HighConfidence:
		return 0.9
	case ExactMatch:
		return 1.0
	default:
		return 0.0
	}
}

func (r MatchResult) String() string {
	switch r {
	case NoMatch:
		return "no_match"
	case LowConfidence:
		return "low"
	case MediumConfidence:
		return "medium"
	case HighConfidence:
		return "high"
	case ExactMatch:
		return "exact"
	default:
		return "unknown"
	}
}
