package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
	"securedocs/internal/service"
)

// multipartOverhead is the slack allowed on top of the file itself for multipart framing.
const multipartOverhead = 1 << 20

const downloadLinkMessage = "Secure download link generated successfully"

type FileHandler struct {
	files     *service.FileService
	downloads *service.DownloadService
	log       logging.Logger
}

func NewFileHandler(files *service.FileService, downloads *service.DownloadService, log logging.Logger) *FileHandler {
	return &FileHandler{files: files, downloads: downloads, log: log}
}

type downloadLinkResponse struct {
	*domain.DownloadLink
	Message string `json:"message"`
}

func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	// Role is checked before the body is read.
	if err := service.Authorize(caller.Role, service.OperationUpload); err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxSizeBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return h.files.TooLargeError()
		}
		return domain.Detailed(domain.ErrInvalidInput, "Invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.Detailed(domain.ErrInvalidInput, "Missing file field")
	}
	defer file.Close()

	h.log.Info(r.Context(), "[Upload] received file", "name", header.Filename, "size", header.Size)

	record, err := h.files.Register(r.Context(), caller, header.Filename, file, header.Size)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, record)
	return nil
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	files, err := h.files.ListAll(r.Context(), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(files))
	return nil
}

func (h *FileHandler) ListUploaded(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	files, err := h.files.ListByUploader(r.Context(), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(files))
	return nil
}

func (h *FileHandler) CreateDownloadLink(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	fileID, err := uuid.Parse(chi.URLParam(r, "file_id"))
	if err != nil {
		if err := service.Authorize(caller.Role, service.OperationRequestDownload); err != nil {
			return err
		}
		return domain.Detailed(domain.ErrNotFound, "File not found")
	}

	link, err := h.downloads.CreateGrant(r.Context(), caller, fileID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, downloadLinkResponse{DownloadLink: link, Message: downloadLinkMessage})
	return nil
}

func (h *FileHandler) SecureDownload(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}

	file, obj, err := h.downloads.Redeem(r.Context(), chi.URLParam(r, "token"), caller)
	if err != nil {
		return err
	}
	defer obj.Close()

	encodedName := url.QueryEscape(file.OriginalName)
	asciiName := strings.ReplaceAll(file.OriginalName, `"`, `\"`)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiName, encodedName))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	if n := obj.ContentLength(); n >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	}
	w.WriteHeader(http.StatusOK)

	// The grant is already consumed; a broken stream can only be logged.
	if _, err := io.Copy(w, obj); err != nil {
		h.log.Warn(r.Context(), "[Download] stream interrupted", "file_id", file.ID, "error", err)
	}
	return nil
}

func (h *FileHandler) DownloadHistory(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	items, err := h.downloads.History(r.Context(), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, items)
	return nil
}

func nonNil(files []domain.File) []domain.File {
	if files == nil {
		return []domain.File{}
	}
	return files
}
