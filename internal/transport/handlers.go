package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
	"github.com/TheMichaelB/echoseal/internal/storage"
)

// Form parts kept in memory before spilling to temp files.
const maxFormMemory = 8 << 20

var errUploadTooLarge = errors.New("upload too large")

type errorReply struct {
	status  int
	message string
}

var errorReplies = map[string]errorReply{
	models.ErrCodeNoCodeFound:    {http.StatusBadRequest, "No QR code detected"},
	models.ErrCodeWrongPassword:  {http.StatusForbidden, "Incorrect password or corrupted data"},
	models.ErrCodeTranscription:  {http.StatusBadRequest, "Could not transcribe audio"},
	models.ErrCodePayloadTooBig:  {http.StatusRequestEntityTooLarge, "Message too large for a seal"},
	models.ErrCodeInvalidImage:   {http.StatusBadRequest, "Could not read image"},
	models.ErrCodeInvalidRequest: {http.StatusBadRequest, ""},
	models.ErrCodeNotFound:       {http.StatusNotFound, "Seal not found"},
	models.ErrCodeStorage:        {http.StatusInternalServerError, "Could not store seal"},
	models.ErrCodeInternal:       {http.StatusInternalServerError, "Internal error"},
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleCreateSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := seal.CreateRequest{
		Message:  r.FormValue("message"),
		Password: r.FormValue("password"),
	}

	audio, err := formFile(r, "audio", models.MediaAudio)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if audio != nil {
		defer audio.Close()
		req.Audio = audio
	}

	background, err := formFile(r, "background", models.MediaImage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if background != nil {
		img, err := qr.DecodeImage(background)
		background.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Background = img
	}

	sl, err := s.deps.Creator.Create(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx = events.WithSealID(ctx, sl.ID)
	name := storage.SealFileName(sl.ID, sl.CreatedAt)

	if s.deps.Files != nil {
		path, err := s.deps.Files.SavePNG(name, sl.Image)
		if err != nil {
			s.writeError(w, r, &models.SealError{Code: models.ErrCodeStorage, Phase: "save", Err: err})
			return
		}
		name = filepath.Base(path)
	}

	s.record(ctx, sl.Record(name))

	var buf bytes.Buffer
	if err := qr.EncodePNG(&buf, sl.Image); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Seal-ID", sl.ID)
	w.Header().Set("X-Seal-Protected", strconv.FormatBool(sl.Protected))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleGetSeal serves a seal image saved by an earlier create-seal call.
func (s *Server) handleGetSeal(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if s.deps.Files == nil {
		s.writeError(w, r, models.ErrSealNotFound)
		return
	}

	exists, err := s.deps.Files.Exists(name)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			s.writeError(w, r, &models.SealError{Code: models.ErrCodeInvalidRequest, Phase: "fetch", Err: err})
			return
		}
		s.writeError(w, r, &models.SealError{Code: models.ErrCodeStorage, Phase: "fetch", Err: err})
		return
	}
	if !exists {
		s.writeError(w, r, fmt.Errorf("%w: %s", models.ErrSealNotFound, name))
		return
	}

	f, err := s.deps.Files.Open(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		events.FromContext(r.Context()).WithError(err).WithField("file", name).Warn("Failed to send seal file")
	}
}

func (s *Server) handleUnseal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := events.FromContext(ctx)

	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, err := formFile(r, "image", models.MediaImage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if file == nil {
		s.writeError(w, r, &models.SealError{
			Code:  models.ErrCodeInvalidRequest,
			Phase: "upload",
			Err:   errors.New("image is required"),
		})
		return
	}
	defer file.Close()

	img, err := qr.DecodeImage(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, ok := s.deps.Decoder.Locate(img)
	if !ok {
		s.writeError(w, r, &models.SealError{Code: models.ErrCodeNoCodeFound, Phase: "locate", Err: models.ErrNoCodeFound})
		return
	}

	rec, err := s.deps.Decoder.RecoverToken(ctx, res.Text, seal.StaticPassword(r.FormValue("password")))
	if err != nil {
		if outcome := models.OutcomeOf(err); outcome == models.StateAccessDenied {
			s.record(ctx, models.SealRecord{
				ID:          uuid.NewString(),
				Kind:        models.KindRecovered,
				Protected:   true,
				TokenLength: len(res.Text),
				Fingerprint: models.Fingerprint(res.Text),
				Strategy:    res.Strategy,
				Outcome:     outcome,
			})
		}
		s.writeError(w, r, err)
		return
	}

	logger.WithFields(map[string]interface{}{
		"strategy":  res.Strategy,
		"protected": rec.Protected,
	}).Info("Seal recovered")

	s.record(ctx, models.SealRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindRecovered,
		Protected:   rec.Protected,
		TokenLength: rec.TokenLength,
		Fingerprint: rec.Fingerprint,
		Strategy:    res.Strategy,
		Outcome:     rec.State,
	})

	writeJSON(w, http.StatusOK, models.UnsealResponse{
		Success:   true,
		Message:   rec.Message,
		Protected: rec.Protected,
		Strategy:  res.Strategy,
	})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &models.SealError{Code: models.ErrCodePayloadTooBig, Phase: "upload", Err: errUploadTooLarge}
		}
		return &models.SealError{
			Code:  models.ErrCodeInvalidRequest,
			Phase: "upload",
			Err:   fmt.Errorf("expected multipart form: %w", err),
		}
	}
	return nil
}

// formFile returns the named upload, or nil when the part is absent. The
// part must sniff as the wanted media kind.
func formFile(r *http.Request, field string, want models.MediaKind) (multipart.File, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.SealError{Code: models.ErrCodeInvalidRequest, Phase: "upload", Err: err}
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, &models.SealError{Code: models.ErrCodeInvalidRequest, Phase: "upload", Err: err}
	}

	if kind := models.DetectMedia(header.Filename, head[:n]); kind != want {
		file.Close()
		return nil, &models.SealError{
			Code:  models.ErrCodeInvalidRequest,
			Phase: "upload",
			Err:   fmt.Errorf("%s must be %s, got %s", field, want, kind),
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, &models.SealError{Code: models.ErrCodeInvalidRequest, Phase: "upload", Err: err}
	}

	return file, nil
}

func (s *Server) record(ctx context.Context, rec models.SealRecord) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.Record(rec); err != nil {
		events.FromContext(ctx).WithError(err).WithField("record_id", rec.ID).Warn("Failed to record seal history")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := models.ErrorCode(err)
	reply, ok := errorReplies[code]
	if !ok {
		reply = errorReplies[models.ErrCodeInternal]
	}

	message := reply.message
	if message == "" {
		var sealErr *models.SealError
		if errors.As(err, &sealErr) {
			message = sealErr.Err.Error()
		} else {
			message = err.Error()
		}
	}

	logger := events.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"code":   code,
		"status": reply.status,
	})
	if reply.status >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Warn("Request rejected")
	}

	writeJSON(w, reply.status, &models.APIError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
