package file

import "errors"

var (
	// ErrFileNotFound signals that no file is visible to the caller under the given name or id.
	ErrFileNotFound = errors.New("file not found")
	// ErrPermissionDenied indicates the file exists but belongs to another user.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidUpload rejects an upload with an unusable name or size.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")

	// ErrStorageWrite wraps object store failures while writing a blob.
	ErrStorageWrite = errors.New("object store write failed")
	// ErrStorageRead wraps object store failures while reading a blob, including a missing blob.
	ErrStorageRead = errors.New("object store read failed")
	// ErrStorageDelete wraps object store failures while removing a blob.
	ErrStorageDelete = errors.New("object store delete failed")
	// ErrMetadataWrite wraps metadata store failures on insert or delete.
	ErrMetadataWrite = errors.New("metadata write failed")
	// ErrMetadataRead wraps metadata store failures on lookup or listing.
	ErrMetadataRead = errors.New("metadata read failed")

	// ErrObjectNotFound is returned by ObjectStore.Get when no blob exists under the key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrReconcileInProgress is returned when a reconciliation pass is already running.
	ErrReconcileInProgress = errors.New("reconciliation already in progress")
)
