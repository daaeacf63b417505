package rest

import (
	"net/http"

	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/model"
	"go.uber.org/zap"
)

type EventRequest struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithErr(w, err)
		return
	}
	if len(req.Event) == 0 {
		respondWithErr(w, model.ValidationError{Field: "event", Message: "must not be empty"})
		return
	}
	if err := s.engine.Publish(req.Event, req.Payload); err != nil {
		logger.Error("error publishing event", zap.String("event", req.Event), zap.Error(err))
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]any{"event": req.Event})
}

func (s *Server) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req event.TriggerRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithErr(w, err)
		return
	}
	if len(req.Flows) == 0 {
		respondWithErr(w, model.ValidationError{Field: "flows", Message: "must not be empty"})
		return
	}
	if err := s.engine.Trigger(req.Flows, req.Args); err != nil {
		logger.Error("error triggering flows", zap.Strings("flows", req.Flows), zap.Error(err))
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]any{"flows": req.Flows})
}
