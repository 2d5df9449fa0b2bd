package mutation

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/dataservice/storage"
)

// DocumentsBucket holds uploaded documents.
const DocumentsBucket = "documents"

// DocumentExtensions are the accepted upload types.
var DocumentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "txt": true, "jpg": true, "jpeg": true, "png": true,
}

// UploadDocumentInput is the upload dialog form.
type UploadDocumentInput struct {
	Title      string
	FileName   string
	File       io.Reader
	MeetingID  string
	IsMinutes  bool
	UploaderID string
}

// StorageKey names an uploaded object: a random base36 token, the upload
// time in unix milliseconds and the original extension.
func StorageKey(fileName string, now time.Time) (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	token := strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36)
	if len(token) > 13 {
		token = token[:13]
	}
	base := filepath.Base(fileName)
	ext := base
	if i := strings.LastIndex(base, "."); i >= 0 {
		ext = base[i+1:]
	}
	return fmt.Sprintf("%s_%d.%s", token, now.UnixMilli(), ext), nil
}

type uploadDocument struct {
	f    *Forms
	in   UploadDocumentInput
	path string
}

// UploadDocument stores a file and inserts its metadata row. The two
// writes are not atomic: if the insert fails the stored object remains.
func (f *Forms) UploadDocument(in UploadDocumentInput) Mutation {
	in.Title = Sanitize(in.Title)
	return &uploadDocument{f: f, in: in}
}

func (m *uploadDocument) Validate() error {
	if m.in.Title == "" || m.in.File == nil || m.in.FileName == "" {
		return &ValidationError{Title: "Missing information", Description: "Please provide both a title and a file."}
	}
	return NewValidator().
		Length(m.in.Title, "title", 200).
		Extension(m.in.FileName, "file", DocumentExtensions).
		Err()
}

func (m *uploadDocument) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "documents", Action: "create", ActorID: m.in.UploaderID}
	if m.f.storage == nil {
		return change, errors.New("document storage is not configured")
	}
	now := m.f.now()
	key, err := StorageKey(m.in.FileName, now)
	if err != nil {
		return change, err
	}
	m.path = "documents/" + key

	if err := m.f.storage.Upload(ctx, DocumentsBucket, m.path, m.in.File); err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return change, &UserError{Message: "The file is too large."}
		}
		return change, fmt.Errorf("upload %s: %w", m.path, err)
	}
	url := m.f.storage.PublicURL(DocumentsBucket, m.path)

	stored, err := m.f.svc.Insert(ctx, "documents", dataservice.Row{
		"title":       m.in.Title,
		"url":         url,
		"uploaded_by": nullable(m.in.UploaderID),
		"uploaded_at": now,
		"meeting_id":  nullable(m.in.MeetingID),
		"is_minutes":  m.in.IsMinutes,
	})
	if err != nil {
		m.f.logger.With("error", err).Warn("document row insert failed, stored object left orphaned",
			"bucket", DocumentsBucket, "path", m.path)
		return change, fmt.Errorf("insert document: %w", err)
	}
	change.ID, _ = stored["id"].(string)
	change.Details = map[string]any{"title": m.in.Title, "path": m.path}
	return change, nil
}

func (m *uploadDocument) Succeeded() []Notification {
	return []Notification{success("Document uploaded successfully.")}
}

func (m *uploadDocument) Failed(err error) Notification {
	return failure("Upload failed", "Failed to upload document", err)
}
