package media

import "errors"

var (
	// ErrTransport reports a network failure while resolving or streaming media.
	ErrTransport = errors.New("media transport failure")
	// ErrRetrievalRejected reports that the platform refused to hand out the file.
	ErrRetrievalRejected = errors.New("media retrieval rejected by platform")
	// ErrOversize reports a payload above the configured ceiling.
	ErrOversize = errors.New("media exceeds size limit")
	// ErrStorageRead reports a disk read failure while hashing.
	ErrStorageRead = errors.New("media storage read failure")
	// ErrStorageWrite reports a disk write or rename failure.
	ErrStorageWrite = errors.New("media storage write failure")
	// ErrNotFound reports that no finalized file exists for a hash.
	ErrNotFound = errors.New("media not found")
)
