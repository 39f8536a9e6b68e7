package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/marcus/soilnet/internal/serverdb"
)

// CreateFarmerRequest is the JSON body for POST /v1/farmers.
type CreateFarmerRequest struct {
	FullName      string  `json:"full_name" validate:"required,min=2,max=50"`
	Email         string  `json:"email" validate:"required,email,max=254"`
	Phone         string  `json:"phone" validate:"omitempty,startswith=+,max=20"`
	Country       string  `json:"country" validate:"omitempty,len=2,alpha"`
	Province      string  `json:"province" validate:"max=60"`
	City          string  `json:"city" validate:"max=60"`
	Address       string  `json:"address" validate:"max=200"`
	FarmName      string  `json:"farm_name" validate:"max=80"`
	FarmSizeAcres float64 `json:"farm_size_acres" validate:"gte=0,lte=100000"`
	Crops         string  `json:"crops" validate:"max=200"`
}

// UpdateFarmerRequest is the JSON body for PATCH /v1/farmers/{id}.
type UpdateFarmerRequest struct {
	FullName      *string  `json:"full_name" validate:"omitempty,min=2,max=50"`
	Phone         *string  `json:"phone" validate:"omitempty,startswith=+,max=20"`
	Country       *string  `json:"country" validate:"omitempty,len=2,alpha"`
	Province      *string  `json:"province" validate:"omitempty,max=60"`
	City          *string  `json:"city" validate:"omitempty,max=60"`
	Address       *string  `json:"address" validate:"omitempty,max=200"`
	FarmName      *string  `json:"farm_name" validate:"omitempty,max=80"`
	FarmSizeAcres *float64 `json:"farm_size_acres" validate:"omitempty,gte=0,lte=100000"`
	Crops         *string  `json:"crops" validate:"omitempty,max=200"`
}

// FarmerListResponse is returned by GET /v1/farmers.
type FarmerListResponse struct {
	Data   []*serverdb.Farmer `json:"data"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// consultantFor loads the consultant record of the authenticated user.
func (s *Server) consultantFor(w http.ResponseWriter, r *http.Request) *serverdb.Consultant {
	user := getUserFromContext(r.Context())
	c, err := s.store.GetConsultantByUserID(user.UserID)
	if err != nil {
		logFor(r.Context()).Error("get consultant", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load consultant")
		return nil
	}
	if c == nil {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "complete your registration first")
		return nil
	}
	return c
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// handleListFarmers handles GET /v1/farmers?q=&limit=&offset=.
func (s *Server) handleListFarmers(w http.ResponseWriter, r *http.Request) {
	c := s.consultantFor(w, r)
	if c == nil {
		return
	}
	limit, offset := queryInt(r, "limit", 50), queryInt(r, "offset", 0)
	farmers, total, err := s.store.ListFarmers(c.ID, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		logFor(r.Context()).Error("list farmers", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list farmers")
		return
	}
	if farmers == nil {
		farmers = []*serverdb.Farmer{}
	}
	writeJSON(w, http.StatusOK, FarmerListResponse{Data: farmers, Total: total, Limit: limit, Offset: offset})
}

// handleCreateFarmer handles POST /v1/farmers.
func (s *Server) handleCreateFarmer(w http.ResponseWriter, r *http.Request) {
	c := s.consultantFor(w, r)
	if c == nil {
		return
	}
	var req CreateFarmerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	f, err := s.store.CreateFarmer(c.ID, serverdb.Farmer{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Country:       strings.ToUpper(req.Country),
		Province:      req.Province,
		City:          req.City,
		Address:       req.Address,
		FarmName:      req.FarmName,
		FarmSizeAcres: req.FarmSizeAcres,
		Crops:         req.Crops,
	})
	if errors.Is(err, serverdb.ErrFarmerLinked) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "farmer is already linked to a consultant")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("create farmer", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create farmer")
		return
	}

	user := getUserFromContext(r.Context())
	s.notify(r, user.UserID, serverdb.NotifyLinked, "Farmer added", f.FullName+" was added to your farmers.")
	s.notify(r, f.UserID, serverdb.NotifyLinked, "Consultant assigned", "A consultant is now managing your farm records.")
	logFor(r.Context()).Info("farmer linked", "farmer_id", f.ID)
	writeJSON(w, http.StatusCreated, f)
}

// handleGetFarmer handles GET /v1/farmers/{id}.
func (s *Server) handleGetFarmer(w http.ResponseWriter, r *http.Request) {
	c := s.consultantFor(w, r)
	if c == nil {
		return
	}
	f, err := s.store.GetLinkedFarmer(c.ID, r.PathValue("id"))
	if err != nil {
		logFor(r.Context()).Error("get farmer", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load farmer")
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "farmer not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleUpdateFarmer handles PATCH /v1/farmers/{id}.
func (s *Server) handleUpdateFarmer(w http.ResponseWriter, r *http.Request) {
	c := s.consultantFor(w, r)
	if c == nil {
		return
	}
	var req UpdateFarmerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Country != nil {
		up := strings.ToUpper(*req.Country)
		req.Country = &up
	}

	f, err := s.store.UpdateFarmer(c.ID, r.PathValue("id"), serverdb.FarmerUpdate{
		FullName:      req.FullName,
		Phone:         req.Phone,
		Country:       req.Country,
		Province:      req.Province,
		City:          req.City,
		Address:       req.Address,
		FarmName:      req.FarmName,
		FarmSizeAcres: req.FarmSizeAcres,
		Crops:         req.Crops,
	})
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "farmer not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("update farmer", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update farmer")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleDeleteFarmer handles DELETE /v1/farmers/{id}.
func (s *Server) handleDeleteFarmer(w http.ResponseWriter, r *http.Request) {
	c := s.consultantFor(w, r)
	if c == nil {
		return
	}
	err := s.store.DeleteFarmer(c.ID, r.PathValue("id"))
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "farmer not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("delete farmer", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete farmer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
