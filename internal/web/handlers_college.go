package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/store"
)

type createCollegeRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := s.colleges.ListColleges(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if colleges == nil {
		colleges = []core.College{}
	}
	writeJSON(w, http.StatusOK, colleges)
}

func (s *Server) handleCreateCollege(w http.ResponseWriter, r *http.Request) {
	var req createCollegeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.respondError(w, r, errInvalidBody)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, r, errInvalidBody)
		return
	}

	college, err := s.colleges.CreateCollege(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, store.ErrCollegeExists) {
			err = &core.UserError{
				Technical: err,
				User: core.UserMessage{
					Message: "Ya existe un colegio con ese nombre",
					Action:  "Use otro nombre o importe en el colegio existente",
					Code:    "DB007",
				},
			}
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, college)
}
