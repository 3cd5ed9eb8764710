package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/blob"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// WithBlobStore sets the blob store documents are uploaded into.
func WithBlobStore(b blob.Store) Option { return func(s *Service) { s.blobs = b } }

// UploadInput carries one supporting document upload.
type UploadInput struct {
	Role     policy.Role
	Type     string
	Name     string
	MimeType string
	Data     []byte
}

// UploadDocument validates the file against the role's requirements, stores
// the content, and returns the document reference to attach at submission.
func (s *Service) UploadDocument(ctx context.Context, in UploadInput) (*application.Document, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("%w: no document store configured", sentinel.ErrValidation)
	}
	if in.Type == "" || in.Name == "" || in.MimeType == "" {
		return nil, fmt.Errorf("%w: document type, name, and mime type are required", sentinel.ErrValidation)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: document content is empty", sentinel.ErrValidation)
	}

	reqs, err := application.RequirementsFor(in.Role)
	if err != nil {
		return nil, err
	}
	if !reqs.ExpectsDocument(in.Type) {
		return nil, fmt.Errorf("%w: document type %q is not part of a %s application", sentinel.ErrValidation, in.Type, in.Role)
	}
	if int64(len(in.Data)) > reqs.MaxDocumentSize {
		return nil, fmt.Errorf("%w: document %q exceeds the %d byte limit", sentinel.ErrValidation, in.Name, reqs.MaxDocumentSize)
	}
	if !reqs.FormatAllowed(in.MimeType) {
		return nil, fmt.Errorf("%w: format %q is not accepted for a %s application", sentinel.ErrValidation, in.MimeType, in.Role)
	}

	key := in.Type + "/" + id.New(id.PrefixApplication).String() + "/" + sanitizeName(in.Name)
	url, err := s.blobs.Put(ctx, blob.Object{
		Key:         key,
		ContentType: in.MimeType,
		Data:        in.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	return &application.Document{
		Type:     in.Type,
		URL:      url,
		Name:     in.Name,
		MimeType: in.MimeType,
		Size:     int64(len(in.Data)),
	}, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
