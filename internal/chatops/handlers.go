package chatops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"approvalhub/internal/approvals"
	"approvalhub/internal/logging"
)

type Decider interface {
	Decide(ctx context.Context, id int64, actor string, action approvals.Action) (approvals.Request, error)
}

type HomePublisher interface {
	Refresh(ctx context.Context, approverID string) error
	RefreshWith(ctx context.Context, q HomeQuery) error
}

// Handler serves the Slack callback endpoints. Requests are expected to
// have passed Verifier.Middleware.
type Handler struct {
	Decider   Decider
	Publisher HomePublisher
	Builder   ViewBuilder
}

type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type string `json:"type"`
		User string `json:"user"`
	} `json:"event"`
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	switch env.Type {
	case "url_verification":
		writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	case "event_callback":
		if env.Event.Type == "app_home_opened" && env.Event.User != "" && h.Publisher != nil {
			if err := h.Publisher.Refresh(r.Context(), env.Event.User); err != nil {
				logging.FromContext(r.Context()).Error("home refresh failed", "user_id", env.Event.User, "error", err)
			}
		}
	}
	writeOK(w)
}

type interactionPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []blockAction `json:"actions"`
	View    *struct {
		State struct {
			Values map[string]map[string]blockAction `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

type blockAction struct {
	ActionID       string `json:"action_id"`
	Value          string `json:"value"`
	SelectedOption *struct {
		Value string `json:"value"`
	} `json:"selected_option"`
}

func (a blockAction) selected() string {
	if a.SelectedOption != nil {
		return a.SelectedOption.Value
	}
	return a.Value
}

func (h *Handler) Interactive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var p interactionPayload
	if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	actor := strings.TrimSpace(p.User.ID)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "user id missing")
		return
	}
	if len(p.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "no actions")
		return
	}
	action := p.Actions[0]
	logger := logging.FromContext(r.Context()).With("actor", actor, "action_id", action.ActionID)

	switch action.ActionID {
	case ActionApprove, ActionReject:
		h.decide(w, r, actor, action)
	case ActionFilterSource, ActionSemanticSearch:
		q := p.homeQuery(actor)
		if action.ActionID == ActionFilterSource {
			q.Source = normalizeSource(action.selected())
		} else {
			q.Search = strings.TrimSpace(action.Value)
		}
		if h.Publisher != nil {
			if err := h.Publisher.RefreshWith(r.Context(), q); err != nil {
				logger.Error("home refresh failed", "error", err)
			}
		}
		writeOK(w)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// homeQuery recovers the filter and search currently shown in the view so
// one control does not reset the other.
func (p interactionPayload) homeQuery(actor string) HomeQuery {
	q := HomeQuery{ApproverID: actor}
	if p.View == nil {
		return q
	}
	if a, ok := p.View.State.Values[blockFilter][ActionFilterSource]; ok {
		q.Source = normalizeSource(a.selected())
	}
	if a, ok := p.View.State.Values[blockSearch][ActionSemanticSearch]; ok {
		q.Search = strings.TrimSpace(a.Value)
	}
	return q
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, actor string, action blockAction) {
	id, err := strconv.ParseInt(strings.TrimSpace(action.Value), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if h.Decider == nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	_, err = h.Decider.Decide(r.Context(), id, actor, approvals.Action(action.ActionID))
	var verr *approvals.ValidationError
	switch {
	case err == nil:
		writeOK(w)
	case errors.Is(err, approvals.ErrNotFound):
		writeError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, approvals.ErrForbidden):
		writeError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, approvals.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, "request already decided")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		logging.FromContext(r.Context()).Error("decision failed", "id", id, "actor", actor, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	var q HomeQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	q.ApproverID = strings.TrimSpace(q.ApproverID)
	if q.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "user id missing")
		return
	}
	if h.Builder == nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	view, err := h.Builder.Build(r.Context(), q)
	if err != nil {
		logging.FromContext(r.Context()).Error("home view build failed", "user_id", q.ApproverID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
