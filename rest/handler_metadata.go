package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/automate/metadata"
)

func (s *Server) HandleListServices(w http.ResponseWriter, r *http.Request) {
	services := s.engine.Registry().Services()
	infos := make([]metadata.ServiceInfo, 0, len(services))
	for _, svc := range services {
		infos = append(infos, svc.Info())
	}
	respondWithJSON(w, http.StatusOK, infos)
}

func (s *Server) HandleGetService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	svc, ok := s.engine.Registry().Service(name)
	if !ok {
		respondWithError(w, http.StatusNotFound, "service "+name+" not found")
		return
	}
	respondWithJSON(w, http.StatusOK, svc.Info())
}
