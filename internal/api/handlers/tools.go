package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/media"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/recognize"
	"github.com/mediakit/backend/internal/repository"
	"github.com/mediakit/backend/internal/usage"
)

// ToolsHandler hosts the gated tool routes. Each route is a thin adapter:
// consume one unit of quota, hand the uploaded file to the external tool,
// stream the result back. Quota is consumed on attempt, before the external
// work runs.
type ToolsHandler struct {
	gate       *usage.Gate
	userRepo   UserDirectory
	ffmpeg     *media.FFmpeg
	recognizer *recognize.Client
	uploadDir  string
	timeout    time.Duration
}

// NewToolsHandler creates a new tools handler
func NewToolsHandler(gate *usage.Gate, userRepo UserDirectory, ffmpeg *media.FFmpeg, recognizer *recognize.Client, uploadDir string, timeout time.Duration) *ToolsHandler {
	return &ToolsHandler{
		gate:       gate,
		userRepo:   userRepo,
		ffmpeg:     ffmpeg,
		recognizer: recognizer,
		uploadDir:  uploadDir,
		timeout:    timeout,
	}
}

// Convert transcodes the uploaded file into the requested format.
// POST /api/v1/tools/convert (multipart: file, format, bitrate, sample_rate)
func (h *ToolsHandler) Convert(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionConversion)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	// Form fields are read only after saveUpload has installed the size cap
	// and parsed the multipart body; FormValue before that point would parse
	// the body with no limit in place.
	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Target format is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// GIF output is additionally bounded by the tier's duration ceiling.
	if format == "gif" && !ls.GIFMaxDuration().IsUnlimited() {
		probe, err := h.ffmpeg.Probe(ctx, inputPath)
		if err != nil {
			log.Printf("[tools] probe failed for user %s: %v", user.ID, err)
			writeError(w, http.StatusUnprocessableEntity, "probe_failed", "Could not read the uploaded file")
			return
		}
		if probe.DurationSeconds() > float64(ls.GIFMaxDuration().Value()) {
			writeError(w, http.StatusRequestEntityTooLarge, "duration_exceeded",
				fmt.Sprintf("GIF conversion is limited to %d seconds on your plan", ls.GIFMaxDuration().Value()))
			return
		}
	}

	outputPath := h.outputPath(format)
	defer os.Remove(outputPath)

	opts := media.ConvertOptions{
		AudioBitrate: r.FormValue("bitrate"),
		SampleRate:   formInt(r, "sample_rate"),
	}
	if err := h.ffmpeg.Convert(ctx, inputPath, outputPath, opts); err != nil {
		log.Printf("[tools] convert failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusUnprocessableEntity, "conversion_failed", "Conversion failed")
		return
	}

	h.streamFile(w, outputPath, "converted."+format)
}

// Compress re-encodes the uploaded file at reduced quality.
// POST /api/v1/tools/compress (multipart: file, quality, video)
func (h *ToolsHandler) Compress(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionCompression)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	quality := formInt(r, "quality")
	if quality == 0 {
		quality = 60
	}
	video := r.FormValue("video") == "true"

	ext := ".mp3"
	if video {
		ext = ".mp4"
	}
	outputPath := h.outputPath(strings.TrimPrefix(ext, "."))
	defer os.Remove(outputPath)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.ffmpeg.Compress(ctx, inputPath, outputPath, quality, video); err != nil {
		log.Printf("[tools] compress failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusUnprocessableEntity, "compression_failed", "Compression failed")
		return
	}

	h.streamFile(w, outputPath, "compressed"+ext)
}

// Enhance applies audio cleanup filters to the upload.
// POST /api/v1/tools/enhance (multipart: file, normalize, denoise_db)
func (h *ToolsHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionEnhancement)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	outputPath := h.outputPath("wav")
	defer os.Remove(outputPath)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	opts := media.EnhanceOptions{
		Normalize: r.FormValue("normalize") != "false",
		DenoiseDB: formInt(r, "denoise_db"),
	}
	if err := h.ffmpeg.Enhance(ctx, inputPath, outputPath, opts); err != nil {
		log.Printf("[tools] enhance failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusUnprocessableEntity, "enhancement_failed", "Enhancement failed")
		return
	}

	h.streamFile(w, outputPath, "enhanced.wav")
}

// EditMetadata rewrites container tags without re-encoding.
// POST /api/v1/tools/metadata (multipart: file, title, artist, album, ...)
func (h *ToolsHandler) EditMetadata(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionMetadataEdit)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	tags := make(map[string]string)
	for _, key := range []string{"title", "artist", "album", "genre", "date", "comment"} {
		if v := r.FormValue(key); v != "" {
			tags[key] = v
		}
	}
	if len(tags) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "At least one metadata tag is required")
		return
	}

	ext := filepath.Ext(inputPath)
	if ext == "" {
		ext = ".mp3"
	}
	outputPath := h.outputPath(strings.TrimPrefix(ext, "."))
	defer os.Remove(outputPath)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.ffmpeg.EditMetadata(ctx, inputPath, outputPath, tags); err != nil {
		log.Printf("[tools] metadata edit failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusUnprocessableEntity, "metadata_failed", "Metadata edit failed")
		return
	}

	h.streamFile(w, outputPath, "tagged"+ext)
}

// Identify fingerprints the uploaded sample against the recognition API.
// POST /api/v1/tools/identify (multipart: file)
func (h *ToolsHandler) Identify(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionIdentification)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	match, err := h.recognizer.Identify(ctx, inputPath)
	if err != nil {
		log.Printf("[tools] identify failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusBadGateway, "identification_failed", "Identification service unavailable")
		return
	}

	if match == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"match": nil, "message": "No match found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

// Probe reads format and stream information from the upload. Probing is
// cheap, so it consumes the generic process action.
// POST /api/v1/tools/probe (multipart: file)
func (h *ToolsHandler) Probe(w http.ResponseWriter, r *http.Request) {
	user, ls, ok := h.consume(w, r, models.ActionProcess)
	if !ok {
		return
	}

	inputPath, cleanup, ok := h.saveUpload(w, r, ls)
	if !ok {
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	probe, err := h.ffmpeg.Probe(ctx, inputPath)
	if err != nil {
		log.Printf("[tools] probe failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusUnprocessableEntity, "probe_failed", "Could not read the uploaded file")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(probe.Raw)
}

// consume authenticates, re-reads the tier, and spends one unit of quota.
// The limit set of the user's tier comes back for file ceilings.
func (h *ToolsHandler) consume(w http.ResponseWriter, r *http.Request, action models.ActionType) (*models.User, limits.LimitSet, bool) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return nil, limits.LimitSet{}, false
	}

	status, err := h.gate.Increment(r.Context(), user.ID, user.Tier, action)
	if err != nil {
		if errors.Is(err, usage.ErrLimitExceeded) {
			writeLimitExceeded(w, status)
			return nil, limits.LimitSet{}, false
		}
		log.Printf("[tools] usage gate failed for user %s action %s: %v", user.ID, action, err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to check usage limits")
		return nil, limits.LimitSet{}, false
	}

	return user, limits.ForTier(user.Tier), true
}

// currentUser resolves the authenticated user with the current tier from the
// database
func (h *ToolsHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	fullUser, err := h.userRepo.GetByID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unknown user")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch user data")
		return nil, false
	}

	return fullUser, true
}

// saveUpload persists the multipart "file" part to a temp file under the
// upload dir, enforcing the tier's size ceiling. The returned cleanup
// removes the temp file.
func (h *ToolsHandler) saveUpload(w http.ResponseWriter, r *http.Request, ls limits.LimitSet) (string, func(), bool) {
	maxBytes := int64(2) << 30
	if !ls.MaxFileSize().IsUnlimited() {
		maxBytes = int64(ls.MaxFileSizeMB) << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("Upload exceeds the %d MB limit for your plan", ls.MaxFileSizeMB))
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "A file upload is required")
		return "", nil, false
	}
	defer file.Close()

	if !ls.MaxFileSize().IsUnlimited() && header.Size > int64(ls.MaxFileSizeMB)<<20 {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("Upload exceeds the %d MB limit for your plan", ls.MaxFileSizeMB))
		return "", nil, false
	}

	ext := filepath.Ext(header.Filename)
	dstPath := filepath.Join(h.uploadDir, "upload-"+uuid.New().String()+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to store upload")
		return "", nil, false
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to store upload")
		return "", nil, false
	}
	dst.Close()

	return dstPath, func() { os.Remove(dstPath) }, true
}

// formInt reads an optional integer form field; 0 when absent or malformed
func formInt(r *http.Request, key string) int {
	v := r.FormValue(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// outputPath builds a unique temp path with the given extension
func (h *ToolsHandler) outputPath(ext string) string {
	return filepath.Join(h.uploadDir, "output-"+uuid.New().String()+"."+ext)
}

// streamFile sends a produced file back as an attachment and removes it
func (h *ToolsHandler) streamFile(w http.ResponseWriter, path, downloadName string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to read result")
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(downloadName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := f.Stat()
	if err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
