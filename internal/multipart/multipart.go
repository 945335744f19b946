// Package multipart builds multipart/form-data request bodies for the portal
// upload endpoints and downloads remote upload sources to local files.
package multipart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	mimemultipart "mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/urlnorm"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultContentType is used for files whose extension has no known type.
const DefaultContentType = "application/octet-stream"

// Static errors for err113 compliance.
var (
	ErrRemoteSource   = errors.New("remote upload source must be materialized first")
	ErrEmptySource    = errors.New("upload source is empty")
	ErrDownloadFailed = errors.New("download of upload source failed")
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Body is an encoded multipart payload.
type Body struct {
	Boundary    string
	ContentType string
	Data        []byte
}

// Encode writes fields, in sorted key order, followed by one part per
// upload. Upload sources must be local paths readable through fs.
func Encode(fs afero.Fs, fields portal.Form, uploads []portal.Upload) (*Body, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var buf bytes.Buffer

	writer := mimemultipart.NewWriter(&buf)

	for _, key := range fields.Keys() {
		err := writer.WriteField(key, portal.Stringify(fields[key]))
		if err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	for _, upload := range uploads {
		err := writeFile(fs, writer, upload)
		if err != nil {
			return nil, err
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &Body{
		Boundary:    writer.Boundary(),
		ContentType: writer.FormDataContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// ContentTypeFor guesses the Content-Type of a file from its name.
func ContentTypeFor(fileName string) string {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if contentType == "" {
		return DefaultContentType
	}

	return contentType
}

func writeFile(fs afero.Fs, writer *mimemultipart.Writer, upload portal.Upload) error {
	if upload.Source == "" {
		return fmt.Errorf("%w: field %s", ErrEmptySource, upload.Field)
	}

	if urlnorm.IsHTTP(upload.Source) {
		return fmt.Errorf("%w: %s", ErrRemoteSource, upload.Source)
	}

	fileName := upload.FileName
	if fileName == "" {
		fileName = filepath.Base(upload.Source)
	}

	file, err := fs.Open(upload.Source)
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", upload.Source, err)
	}
	defer func() { _ = file.Close() }()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(upload.Field), quoteEscaper.Replace(fileName)))
	header.Set("Content-Type", ContentTypeFor(fileName))

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create part %s: %w", upload.Field, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return fmt.Errorf("failed to copy upload %s: %w", upload.Source, err)
	}

	return nil
}

// Materializer downloads remote upload sources into WorkDir so that they
// can be encoded like local files. Downloaded files are left in place.
type Materializer struct {
	Fs         afero.Fs
	WorkDir    string
	HTTPClient *http.Client
}

// Materialize returns upload unchanged when its source is local. A remote
// source is fetched to WorkDir/portal-upload-<uuid><ext> and the returned
// upload points at that file; its FileName defaults to the last path
// segment of the URL.
func (m *Materializer) Materialize(ctx context.Context, upload portal.Upload) (portal.Upload, error) {
	if !urlnorm.IsHTTP(upload.Source) {
		return upload, nil
	}

	fs := m.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	workDir := m.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	remoteName := remoteFileName(upload.Source)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upload.Source, nil)
	if err != nil {
		return upload, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return upload, fmt.Errorf("failed to download %s: %w", upload.Source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return upload, fmt.Errorf("%w: %s returned %s", ErrDownloadFailed, upload.Source, resp.Status)
	}

	err = fs.MkdirAll(workDir, 0o750)
	if err != nil {
		return upload, fmt.Errorf("failed to create work directory: %w", err)
	}

	ext := path.Ext(remoteName)
	if ext == "" {
		ext = extensionFor(resp.Header.Get("Content-Type"))
		if remoteName != "" {
			remoteName += ext
		}
	}

	localPath := filepath.Join(workDir, "portal-upload-"+uuid.NewString()+ext)

	file, err := fs.Create(localPath)
	if err != nil {
		return upload, fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	_, err = io.Copy(file, resp.Body)
	closeErr := file.Close()

	if err != nil {
		return upload, fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	if closeErr != nil {
		return upload, fmt.Errorf("failed to close %s: %w", localPath, closeErr)
	}

	materialized := upload
	materialized.Source = localPath

	if materialized.FileName == "" {
		materialized.FileName = remoteName
	}

	return materialized, nil
}

// MaterializeAll materializes every upload in order.
func (m *Materializer) MaterializeAll(ctx context.Context, uploads []portal.Upload) ([]portal.Upload, error) {
	out := make([]portal.Upload, 0, len(uploads))

	for _, upload := range uploads {
		materialized, err := m.Materialize(ctx, upload)
		if err != nil {
			return nil, err
		}

		out = append(out, materialized)
	}

	return out, nil
}

func remoteFileName(source string) string {
	trimmed := source
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}

	name := path.Base(trimmed)
	if name == "." || name == "/" || strings.Contains(name, ":") {
		return ""
	}

	return name
}

// extensionFor guesses a file extension from a Content-Type header, so that
// an image served without one still gets a usable name.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	}

	extensions, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(extensions) == 0 {
		return ""
	}

	return extensions[0]
}
