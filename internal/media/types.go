package media

import (
	"fmt"
	"strings"
)

// MaxMediaBytes is the hard ceiling for one ingested item (2 GiB).
const MaxMediaBytes int64 = 2 << 30

// Kind classifies the incoming media.
type Kind string

const (
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
)

// IncomingMedia references a file held by the messaging platform. It only
// lives for the duration of one ingestion flow.
type IncomingMedia struct {
	// FileID is the opaque platform token used to resolve a download address.
	FileID      string
	DisplayName string
	Kind        Kind
	MimeType    string
	// DeclaredSize is the size the platform reported; only used for progress.
	DeclaredSize int64
}

// StoredFile is a finalized, content-addressed file in the storage directory.
type StoredFile struct {
	Hash        string `json:"hash"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	DisplayName string `json:"display_name,omitempty"`
	Kind        Kind   `json:"kind,omitempty"`
	// Duplicate is true when a file with the same hash existed before this flow.
	Duplicate bool `json:"duplicate"`
}

// Stage names a step of the ingestion state machine.
type Stage string

const (
	StageReceiving Stage = "receiving"
	StageSizing    Stage = "sizing"
	StageHashing   Stage = "hashing"
	StageFinalized Stage = "finalized"
	StageFailed    Stage = "failed"
	StageRejected  Stage = "rejected"
)

// DuplicatePolicy decides what finalization does when {hash}.{ext} already exists.
type DuplicatePolicy string

const (
	// DuplicateKeep leaves the existing file untouched and discards the new temp file.
	DuplicateKeep DuplicatePolicy = "keep"
	// DuplicateOverwrite atomically replaces the existing file.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
)

// ParseDuplicatePolicy parses a policy name; empty selects DuplicateKeep.
func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DuplicateKeep:
		return DuplicateKeep, nil
	case DuplicateOverwrite:
		return DuplicateOverwrite, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want %q or %q)", raw, DuplicateKeep, DuplicateOverwrite)
	}
}
