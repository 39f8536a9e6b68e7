package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/marcus/soilnet/internal/serverdb"
	"github.com/marcus/soilnet/internal/storage"
)

// DocumentFields are the multipart fields accepted by POST /v1/uploads.
var DocumentFields = []string{"avatar", "educational_doc", "professional_doc", "experience_doc", "government_id"}

// LocationBody is where a user is based.
type LocationBody struct {
	Country  string `json:"country" validate:"omitempty,len=2,alpha"`
	Province string `json:"province" validate:"max=60"`
	City     string `json:"city" validate:"max=60"`
	Address  string `json:"address,omitempty" validate:"max=200"`
}

// FinalizeRequest is the JSON body for POST /v1/signup/finalize.
type FinalizeRequest struct {
	UserID    string            `json:"user_id" validate:"required"`
	ProfileID string            `json:"profile_id" validate:"required"`
	Location  LocationBody      `json:"location"`
	Details   map[string]string `json:"details" validate:"omitempty,dive,max=200"`
	Documents map[string]string `json:"documents" validate:"omitempty,dive,url"`
}

// UploadResponse is returned by POST /v1/uploads.
type UploadResponse struct {
	URLs map[string]string `json:"urls"`
}

// handleGetProfile handles GET /v1/profiles/{userID}. Users may only read
// their own profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	userID := r.PathValue("userID")
	if userID != user.UserID && user.Role != serverdb.RoleAdmin {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "cannot read another user's profile")
		return
	}

	p, err := s.store.GetProfileByUserID(userID)
	if err != nil {
		logFor(r.Context()).Error("get profile", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load profile")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpload handles POST /v1/uploads.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	profileID := r.FormValue("profile_id")
	if userID := r.FormValue("user_id"); userID != "" && userID != user.UserID {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "cannot upload for another user")
		return
	}
	p, err := s.store.GetProfile(profileID)
	if err != nil {
		logFor(r.Context()).Error("get profile", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load profile")
		return
	}
	if p == nil || p.UserID != user.UserID {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	}

	urls := map[string]string{}
	for _, field := range DocumentFields {
		f, hdr, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid file "+field)
			return
		}
		obj, err := s.files.Save(field, p.ID, hdr.Filename, f)
		f.Close()
		if err != nil {
			s.writeStorageError(w, r, err)
			return
		}
		urls[field] = obj.URL
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "no files uploaded")
		return
	}

	s.metrics.RecordUploads(int64(len(urls)))
	logFor(r.Context()).Info("documents stored", "profile_id", p.ID, "count", len(urls))
	writeJSON(w, http.StatusOK, UploadResponse{URLs: urls})
}

// writeStorageError maps file store errors to API errors.
func (s *Server) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, strings.TrimPrefix(err.Error(), storage.ErrTooLarge.Error()+": "))
	case errors.Is(err, storage.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType, strings.TrimPrefix(err.Error(), storage.ErrUnsupportedType.Error()+": "))
	case strings.Contains(err.Error(), "decode image"):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupportedType, "file is not a readable image")
	default:
		logFor(r.Context()).Error("store file", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store file")
	}
}

// handleFinalize handles POST /v1/signup/finalize.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	var req FinalizeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.UserID != user.UserID {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "cannot finalize another user")
		return
	}

	p, err := s.store.Finalize(serverdb.FinalizeInput{
		UserID:    req.UserID,
		ProfileID: req.ProfileID,
		Location: serverdb.Location{
			Country:  strings.ToUpper(req.Location.Country),
			Province: req.Location.Province,
			City:     req.Location.City,
			Address:  req.Location.Address,
		},
		Details:   req.Details,
		Documents: req.Documents,
	})
	switch {
	case errors.Is(err, serverdb.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	case errors.Is(err, serverdb.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, ErrCodeAlreadyFinalized, "profile already finalized")
		return
	case errors.Is(err, serverdb.ErrInvalidDetail):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, strings.TrimPrefix(err.Error(), serverdb.ErrInvalidDetail.Error()+": "))
		return
	case err != nil:
		logFor(r.Context()).Error("finalize", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to complete registration")
		return
	}

	s.logAuthEvent(user.Email, serverdb.AuthEventFinalized, map[string]string{"role": p.Role})
	s.notify(r, user.UserID, serverdb.NotifyWelcome, "Welcome to soilnet",
		"Your "+p.Role+" account is ready.")
	writeJSON(w, http.StatusOK, p)
}

// notify creates a notification, logging failures instead of failing the request.
func (s *Server) notify(r *http.Request, userID, kind, title, body string) {
	if userID == "" {
		return
	}
	if _, err := s.store.CreateNotification(userID, kind, title, body); err != nil {
		logFor(r.Context()).Warn("create notification", "to", userID, "kind", kind, "err", err)
	}
}
