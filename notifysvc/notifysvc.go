package notifysvc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ichigozero/taskdesk/usersvc"
)

const (
	EventTaskCreated = "TaskCreated"

	// ScopeAll makes an event visible to every connected user.
	ScopeAll = "all"
)

// Event is a notification together with who may see it. Scope is either
// ScopeAll or the id of the only non-admin user allowed to receive it.
type Event struct {
	Name    string          `json:"event"`
	Scope   string          `json:"scope"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(name, scope string, payload interface{}) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Scope: scope, Payload: b}, nil
}

// Frame is the message written to subscribers. It leaves out the scope.
func (e Event) Frame() ([]byte, error) {
	return json.Marshal(struct {
		Name    string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}{e.Name, e.Payload})
}

// Viewer is the user on the other end of a subscription.
type Viewer struct {
	UserID string
	Role   usersvc.RoleName
}

func (e Event) VisibleTo(v Viewer) bool {
	return v.Role == usersvc.RoleAdmin || e.Scope == ScopeAll || e.Scope == v.UserID
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("invalid event")
