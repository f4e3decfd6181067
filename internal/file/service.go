package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abduss/cloudbox/internal/auth"
	"github.com/abduss/cloudbox/internal/metrics"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	sniffLength        = 512
	defaultContentType = "application/octet-stream"
)

// Anomaly kinds reported when the blob/record pairing is broken.
const (
	AnomalyOrphanedBlob   = "orphaned_blob"
	AnomalyMissingBlob    = "missing_blob"
	AnomalyDanglingRecord = "dangling_record"
	AnomalyTruncatedBlob  = "truncated_blob"
)

// MetadataStore persists file records.
type MetadataStore interface {
	Create(ctx context.Context, rec Record) (Record, error)
	FindByID(ctx context.Context, id uuid.UUID) (Record, error)
	FindByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (Record, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListStorageKeys(ctx context.Context) ([]string, error)
}

// ObjectStore holds blobs under opaque keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Service coordinates the object store and the metadata store so that every caller only
// sees and changes their own files. There is no transaction spanning both stores: blobs are
// written before records and removed before records, and every broken pairing left behind by
// a partial failure is logged and counted rather than hidden.
type Service struct {
	records     MetadataStore
	objects     ObjectStore
	log         *zap.Logger
	maxFileSize int64
	now         func() time.Time
}

// NewService constructs a file service. A non-positive maxFileSize selects the default limit.
func NewService(records MetadataStore, objects ObjectStore, log *zap.Logger, maxFileSize int64) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	return &Service{
		records:     records,
		objects:     objects,
		log:         log.Named("file"),
		maxFileSize: maxFileSize,
		now:         time.Now,
	}
}

// Store writes the upload to the object store under a key namespaced by the caller, then
// records its metadata. A failed metadata insert leaves the blob in place.
func (s *Service) Store(ctx context.Context, caller auth.Identity, upload Upload) (rec Record, err error) {
	defer func() { s.observe("store", err) }()

	if !caller.Valid() {
		return Record{}, auth.ErrUnauthenticated
	}
	name, err := sanitizeFilename(upload.Name)
	if err != nil {
		return Record{}, err
	}
	if upload.Content == nil || upload.Size < 0 {
		return Record{}, fmt.Errorf("%w: missing content", ErrInvalidUpload)
	}
	if upload.Size > s.maxFileSize {
		return Record{}, ErrFileTooLarge
	}

	key := storageKey(caller.UserID, name)
	log := s.log.With(zap.String("owner_id", caller.UserID.String()), zap.String("storage_key", key))

	limited := io.LimitReader(upload.Content, upload.Size)
	head := make([]byte, min(int64(sniffLength), upload.Size))
	n, err := io.ReadFull(limited, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Record{}, fmt.Errorf("%w: read upload: %w", ErrStorageWrite, err)
	}
	head = head[:n]
	contentType := detectContentType(head, upload.ContentType)

	hasher := sha256.New()
	body := &sizedReader{r: io.TeeReader(io.MultiReader(bytes.NewReader(head), limited), hasher), remaining: upload.Size}

	// A truncated stream errors inside Put, so the store never commits it.
	if _, err := s.objects.Put(ctx, key, body, upload.Size, contentType); err != nil {
		log.Error("blob write failed", zap.Error(err), zap.Int64("declared", upload.Size), zap.Int64("read", body.n))
		return Record{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if body.n != upload.Size {
		// the store accepted fewer bytes than declared; the key may now hold a truncated blob
		if err := s.objects.Delete(ctx, key); err != nil {
			log.Error("truncated blob cleanup failed", zap.Error(err))
		}
		s.anomaly(log, AnomalyTruncatedBlob, io.ErrUnexpectedEOF)
		return Record{}, fmt.Errorf("%w: %w", ErrStorageWrite, io.ErrUnexpectedEOF)
	}

	if err := ctx.Err(); err != nil {
		s.anomaly(log, AnomalyOrphanedBlob, err)
		return Record{}, fmt.Errorf("%w: %w", ErrMetadataWrite, err)
	}

	stored, err := s.records.Create(ctx, Record{
		OwnerID:         caller.UserID,
		FileName:        name,
		StorageKey:      key,
		FileSize:        body.n,
		ContentType:     contentType,
		Checksum:        hex.EncodeToString(hasher.Sum(nil)),
		UploadTimestamp: s.now().UTC(),
	})
	if err != nil {
		s.anomaly(log, AnomalyOrphanedBlob, err)
		return Record{}, fmt.Errorf("%w: %w", ErrMetadataWrite, err)
	}

	metrics.UploadedBytes(stored.FileSize)
	log.Debug("file stored",
		zap.String("file_id", stored.ID.String()),
		zap.String("size", humanize.IBytes(uint64(stored.FileSize))),
	)
	return stored, nil
}

// Load returns the caller's file called name together with a stream of its content.
// The caller must close the stream. A name owned only by other users is reported as not found.
func (s *Service) Load(ctx context.Context, caller auth.Identity, name string) (rec Record, body io.ReadCloser, err error) {
	defer func() { s.observe("load", err) }()

	if !caller.Valid() {
		return Record{}, nil, auth.ErrUnauthenticated
	}

	rec, err = s.records.FindByOwnerAndName(ctx, caller.UserID, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Record{}, nil, ErrFileNotFound
		}
		return Record{}, nil, fmt.Errorf("%w: %w", ErrMetadataRead, err)
	}

	body, err = s.objects.Get(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			s.anomaly(s.log.With(
				zap.String("owner_id", rec.OwnerID.String()),
				zap.String("storage_key", rec.StorageKey),
				zap.String("file_id", rec.ID.String()),
			), AnomalyMissingBlob, err)
		}
		return Record{}, nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return rec, body, nil
}

// ListForCaller returns every record owned by the caller, newest first.
func (s *Service) ListForCaller(ctx context.Context, caller auth.Identity) (records []Record, err error) {
	defer func() { s.observe("list", err) }()

	if !caller.Valid() {
		return nil, auth.ErrUnauthenticated
	}

	records, err = s.records.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataRead, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Delete removes the blob and then the record of file id. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) (err error) {
	defer func() { s.observe("delete", err) }()

	if !caller.Valid() {
		return auth.ErrUnauthenticated
	}

	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("%w: %w", ErrMetadataRead, err)
	}

	if rec.OwnerID != caller.UserID {
		s.log.Warn("delete refused",
			zap.String("file_id", id.String()),
			zap.String("caller_id", caller.UserID.String()),
		)
		return ErrPermissionDenied
	}

	log := s.log.With(zap.String("owner_id", rec.OwnerID.String()), zap.String("storage_key", rec.StorageKey))

	if err := s.objects.Delete(ctx, rec.StorageKey); err != nil {
		log.Error("blob delete failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageDelete, err)
	}

	if err := s.records.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			// removed concurrently after our lookup
			return ErrFileNotFound
		}
		s.anomaly(log, AnomalyDanglingRecord, err)
		return fmt.Errorf("%w: %w", ErrMetadataWrite, err)
	}

	log.Debug("file deleted", zap.String("file_id", rec.ID.String()))
	return nil
}

func (s *Service) anomaly(log *zap.Logger, kind string, err error) {
	metrics.ConsistencyAnomaly(kind)
	log.Error("consistency anomaly", zap.String("kind", kind), zap.Error(err))
}

func (s *Service) observe(op string, err error) {
	metrics.FileOperation(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrFileNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidUpload), errors.Is(err, ErrFileTooLarge):
		return "rejected"
	case errors.Is(err, ErrMetadataWrite), errors.Is(err, ErrMetadataRead):
		return "metadata_error"
	default:
		return "storage_error"
	}
}

// storageKey namespaces blobs by owner so equal names from different users never share a blob.
func storageKey(ownerID uuid.UUID, name string) string {
	return ownerID.String() + "/" + name
}

func sanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty file name", ErrInvalidUpload)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: reserved file name %q", ErrInvalidUpload, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("%w: file name %q contains a path separator", ErrInvalidUpload, name)
	}
	return name, nil
}

func detectContentType(head []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if len(head) > 0 {
		if detected := mimetype.Detect(head); !detected.Is(defaultContentType) {
			return detected.String()
		}
	}
	if declared != "" {
		return declared
	}
	return defaultContentType
}

// sizedReader counts bytes read and turns an EOF before the declared size into io.ErrUnexpectedEOF.
type sizedReader struct {
	r         io.Reader
	remaining int64
	n         int64
}

func (s *sizedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	s.remaining -= int64(n)
	if errors.Is(err, io.EOF) && s.remaining > 0 {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}
