package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/marcus/soilnet/internal/inference"
	"github.com/marcus/soilnet/internal/serverdb"
)

// SoilResultListResponse is returned by GET /v1/soil/results.
type SoilResultListResponse struct {
	Data []*serverdb.SoilResult `json:"data"`
}

// farmerScope resolves which farmer a soil request acts on. Consultants
// name a linked farmer; farmers always act on their own record.
func (s *Server) farmerScope(w http.ResponseWriter, r *http.Request, farmerID string) *serverdb.Farmer {
	user := getUserFromContext(r.Context())
	var f *serverdb.Farmer
	var err error
	switch user.Role {
	case serverdb.RoleConsultant:
		if farmerID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "farmer_id is required")
			return nil
		}
		c := s.consultantFor(w, r)
		if c == nil {
			return nil
		}
		f, err = s.store.GetLinkedFarmer(c.ID, farmerID)
	case serverdb.RoleFarmer:
		f, err = s.store.GetFarmerByUserID(user.UserID)
		if err == nil && f != nil && farmerID != "" && farmerID != f.ID {
			f = nil
		}
	default:
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "soil results are for farmers and consultants")
		return nil
	}
	if err != nil {
		logFor(r.Context()).Error("resolve farmer", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load farmer")
		return nil
	}
	if f == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "farmer not found")
		return nil
	}
	return f
}

// handleClassify handles POST /v1/soil/classify.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	farmer := s.farmerScope(w, r, r.FormValue("farmer_id"))
	if farmer == nil {
		return
	}

	if s.classifier == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInferenceFailed, "soil classification is not configured")
		return
	}

	file, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "image file is required")
		return
	}
	obj, err := s.files.Save("soil", farmer.ID, hdr.Filename, file)
	file.Close()
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	// The image is kept only once a result points at it.
	kept := false
	defer func() {
		if kept {
			return
		}
		if err := s.files.Remove(obj.Key); err != nil {
			logFor(r.Context()).Warn("remove soil image", "key", obj.Key, "err", err)
		}
	}()

	stored, err := s.files.Open(obj.Key)
	if err != nil {
		logFor(r.Context()).Error("reopen soil image", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read stored image")
		return
	}
	data, err := io.ReadAll(stored)
	stored.Close()
	if err != nil {
		logFor(r.Context()).Error("read soil image", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read stored image")
		return
	}

	pred, err := s.classifier.Classify(r.Context(), "soil.jpg", data)
	if errors.Is(err, inference.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInferenceFailed, "soil classification is not configured")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("classify soil", "err", err)
		writeError(w, http.StatusBadGateway, ErrCodeInferenceFailed, "soil classification failed")
		return
	}

	res, err := s.store.CreateSoilResult(serverdb.SoilResult{
		FarmerID:      farmer.ID,
		SubmittedBy:   user.UserID,
		ImageURL:      obj.URL,
		Label:         pred.Class,
		Confidence:    pred.Confidence,
		Probabilities: pred.Probabilities,
	})
	if err != nil {
		logFor(r.Context()).Error("store soil result", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store result")
		return
	}
	kept = true

	s.metrics.RecordClassification()
	body := fmt.Sprintf("%s soil (%.0f%% confidence) for %s.", res.Label, res.Confidence*100, farmer.FullName)
	s.notify(r, user.UserID, serverdb.NotifySoilDone, "Soil analysis ready", body)
	if farmer.UserID != "" && farmer.UserID != user.UserID {
		s.notify(r, farmer.UserID, serverdb.NotifySoilDone, "Soil analysis ready", body)
	}
	logFor(r.Context()).Info("soil classified", "farmer_id", farmer.ID, "label", res.Label, "confidence", res.Confidence)
	writeJSON(w, http.StatusCreated, res)
}

// handleListSoilResults handles GET /v1/soil/results[?farmer_id=].
func (s *Server) handleListSoilResults(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	filter := serverdb.SoilFilter{Limit: queryInt(r, "limit", 50), Offset: queryInt(r, "offset", 0)}
	farmerID := r.URL.Query().Get("farmer_id")

	if user.Role == serverdb.RoleConsultant && farmerID == "" {
		c := s.consultantFor(w, r)
		if c == nil {
			return
		}
		filter.ConsultantID = c.ID
	} else {
		f := s.farmerScope(w, r, farmerID)
		if f == nil {
			return
		}
		filter.FarmerID = f.ID
	}

	results, err := s.store.ListSoilResults(filter)
	if err != nil {
		logFor(r.Context()).Error("list soil results", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list results")
		return
	}
	if results == nil {
		results = []*serverdb.SoilResult{}
	}
	writeJSON(w, http.StatusOK, SoilResultListResponse{Data: results})
}

// handleGetSoilResult handles GET /v1/soil/results/{id}.
func (s *Server) handleGetSoilResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetSoilResult(r.PathValue("id"))
	if err != nil {
		logFor(r.Context()).Error("get soil result", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load result")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "result not found")
		return
	}
	if s.farmerScope(w, r, res.FarmerID) == nil {
		return
	}
	writeJSON(w, http.StatusOK, res)
}
