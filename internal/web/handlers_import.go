package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/logging"
	"github.com/JonMunkholm/ClientImport/internal/notify"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
	"github.com/JonMunkholm/ClientImport/internal/store"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// upload is a received spreadsheet saved to a private temp directory.
type upload struct {
	path string
	name string
	dir  string
}

func (u *upload) remove() {
	os.RemoveAll(u.dir)
}

// receiveUpload saves the multipart "file" field to disk, keeping its
// extension so the reader can pick the format.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: upload exceeds %d bytes", sheet.ErrFileTooLarge, maxSize)
		}
		return nil, fmt.Errorf("no file provided: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if _, err := sheet.FormatFromPath(name); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "clientimport-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	u := &upload{
		path: filepath.Join(dir, "upload"+strings.ToLower(filepath.Ext(name))),
		name: name,
		dir:  dir,
	}

	out, err := os.Create(u.path)
	if err != nil {
		u.remove()
		return nil, fmt.Errorf("save upload: %w", err)
	}
	_, err = io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		u.remove()
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return u, nil
}

// existingKeys loads stored tax identifiers, or an empty set without a
// database.
func (s *Server) existingKeys(ctx context.Context) (core.KeySet, error) {
	if s.store == nil {
		return core.NewKeySet(), nil
	}
	return s.store.ExistingKeys(ctx)
}

// handlePreview validates an uploaded file and reports what importing it
// would do. Nothing is stored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	u, err := s.receiveUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer u.remove()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	existing, err := s.existingKeys(ctx)
	if err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	result, err := svc.PreviewImport(ctx, u.path, existing)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImport validates an uploaded file and stores its valid rows in one
// transaction. Invalid and duplicate rows are reported, not stored.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if s.store == nil {
		respondError(w, r, store.ErrNotConfigured, 0)
		return
	}

	u, err := s.receiveUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer u.remove()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	key := svc.Spec().Key
	commit := func(ctx context.Context, runID string, records []core.CandidateRecord) (int64, error) {
		return s.store.SaveClients(ctx, store.Run{ID: runID, Template: key, File: u.name}, records)
	}

	summary, err := svc.ImportAndCommit(ctx, u.path, s.store.ExistingKeys, commit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	summary.File = u.name

	if s.hub != nil && summary.Committed > 0 {
		ev := s.hub.Publish(notify.NewImportCompleted(key, summary, s.now()))
		logging.FromContext(r.Context()).Debug("import event published", "seq", ev.Seq, "run_id", ev.RunID)
	}
	writeJSON(w, http.StatusOK, summary)
}
