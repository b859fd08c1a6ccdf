package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/rpc"
)

const httpActor = "http"

func actorOr(actor string) string {
	if actor == "" {
		return httpActor
	}
	return actor
}

func (s *Server) postCheck(w http.ResponseWriter, r *http.Request) {
	var req rpc.CheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Check(r.Context(), actorOr(req.Actor), req.Action, req.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	var req rpc.CheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.svc.Report(r.Context(), actorOr(req.Actor), req.Action, req.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) getConstraints(w http.ResponseWriter, r *http.Request) {
	set := s.svc.Constraints()
	writeJSON(w, http.StatusOK, rpc.ConstraintsResponse{Hash: set.Hash(), Constraints: set.Constraints()})
}

func (s *Server) postAssessment(w http.ResponseWriter, r *http.Request) {
	var req rpc.AssessRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Assess(r.Context(), req.Identification, req.Operator, req.Save)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if res.Saved {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}

func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*model.RiskAssessment{}
	}
	writeJSON(w, http.StatusOK, rpc.ListResponse{Assessments: list})
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) postTransition(w http.ResponseWriter, r *http.Request) {
	var req rpc.TransitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.svc.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, req.Actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) getScore(w http.ResponseWriter, r *http.Request) {
	sc, err := s.svc.Score(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) postAdvice(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.svc.Advise(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
