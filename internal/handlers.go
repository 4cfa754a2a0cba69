package internal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/report"
)

type healthResponse struct {
	Status string `json:"status"`
	World  string `json:"world"`
	Tick   uint64 `json:"tick"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", World: snap.World, Tick: snap.Tick})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	if format(r) == "xml" {
		writeXML(w, http.StatusOK, report.BuildXML(snap))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot().Cities)
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "city id must be a number")
		return
	}
	for _, c := range s.src.Snapshot().Cities {
		if c.ID == id {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "no such city")
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot().Stations)
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot().Lines)
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, r, http.StatusBadRequest, "from and to are required")
		return
	}
	cat := goods.CategoryPassengers
	if c := q.Get("category"); c != "" {
		parsed, err := goods.ParseCategory(c)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		cat = parsed
	}
	p, err := s.src.Path(from, to, cat)
	switch {
	case errors.Is(err, report.ErrUnknownStation):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if format(r) == "xml" {
		writeXML(w, http.StatusOK, report.BuildPathXML(p))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func format(r *http.Request) string {
	if r.URL.Query().Get("format") == "xml" {
		return "xml"
	}
	return "json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(report.BuildJSON(v))
}

func writeXML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	f := format(r)
	w.Header().Set("Content-Type", "application/"+f)
	w.WriteHeader(status)
	_, _ = w.Write(report.ErrorPayload(f, msg))
}
