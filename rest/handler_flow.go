package rest

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/engine"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/model"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type ActiveRequest struct {
	Active bool `json:"active"`
}

type RunRequest struct {
	Args any `json:"args"`
}

func (s *Server) lookupFlow(w http.ResponseWriter, r *http.Request) (*flow.Flow, bool) {
	id := mux.Vars(r)["id"]
	f, ok := s.engine.GetFlowByID(id)
	if !ok {
		respondWithErr(w, engine.FlowNotFoundError{Id: id})
		return nil, false
	}
	return f, true
}

// decodeAction builds an action from {service, method, ...props}.
func (s *Server) decodeAction(raw map[string]any) (*action.Action, error) {
	props, err := action.DecodeProps(raw)
	if err != nil {
		return nil, err
	}
	service := cast.ToString(raw["service"])
	method := cast.ToString(raw["method"])
	if len(service) == 0 || len(method) == 0 {
		return nil, model.ValidationError{Field: "method", Message: "service and method are required"}
	}
	return s.engine.CreateAction(props, service, method)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	flows := s.engine.Flows()
	records := make([]model.FlowRecord, 0, len(flows))
	for _, f := range flows {
		records = append(records, f.ToRecord())
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondWithErr(w, err)
		return
	}
	props, err := flow.DecodeProps(raw)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	var actions []*action.Action
	for _, item := range cast.ToSlice(raw["actions"]) {
		rawAction, ok := item.(map[string]any)
		if !ok {
			respondWithErr(w, model.ValidationError{Field: "actions", Message: "every action must be an object"})
			return
		}
		a, err := s.decodeAction(rawAction)
		if err != nil {
			respondWithErr(w, err)
			return
		}
		actions = append(actions, a)
	}

	f, err := s.engine.CreateFlow(props, true)
	if err != nil {
		logger.Error("error creating flow", zap.Error(err))
		respondWithErr(w, err)
		return
	}
	for _, a := range actions {
		if err := f.AddAction(a); err != nil {
			_ = s.engine.DestroyFlow(f.GetId())
			respondWithErr(w, err)
			return
		}
	}
	respondWithJSON(w, http.StatusCreated, f.ToRecord())
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFlow(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, f.ToRecord())
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.DestroyFlow(id); err != nil {
		respondWithErr(w, err)
		return
	}
	if s.states != nil {
		s.states.Delete(id)
	}
	respondOKWithoutBody(w)
}

// HandleRunFlow starts a flow, ?wait=true blocks until the run ends and returns its result.
func (s *Server) HandleRunFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req RunRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondWithErr(w, err)
			return
		}
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	result, err := s.engine.RunFlow(id, req.Args, wait)
	if err != nil {
		logger.Info("flow run failed", zap.String("flow", id), zap.Error(err))
		respondWithErr(w, err)
		return
	}
	if !wait {
		respondWithJSON(w, http.StatusAccepted, map[string]any{"flowId": id})
		return
	}
	respondOK(w, map[string]any{"flowId": id, "result": result})
}

func (s *Server) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFlow(w, r)
	if !ok {
		return
	}
	var req ActiveRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithErr(w, err)
		return
	}
	f.SetActive(req.Active)
	respondWithJSON(w, http.StatusOK, f.ToRecord())
}

func (s *Server) HandleGetRunState(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFlow(w, r)
	if !ok {
		return
	}
	if s.states == nil {
		respondWithError(w, http.StatusNotFound, "run states are not tracked")
		return
	}
	state, ok := s.states.GetRunState(f.GetId())
	if !ok {
		respondWithError(w, http.StatusNotFound, "flow "+f.GetId()+" has not run")
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

func (s *Server) HandleAddAction(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFlow(w, r)
	if !ok {
		return
	}
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondWithErr(w, err)
		return
	}
	a, err := s.decodeAction(raw)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	if pos, ok := raw["position"]; ok {
		err = f.InsertAction(a, cast.ToInt(pos))
	} else {
		err = f.AddAction(a)
	}
	if err != nil {
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, a.ToRecord())
}

func (s *Server) HandleRemoveAction(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupFlow(w, r)
	if !ok {
		return
	}
	if err := f.RemoveActionById(mux.Vars(r)["actionId"]); err != nil {
		respondWithErr(w, err)
		return
	}
	respondOKWithoutBody(w)
}
