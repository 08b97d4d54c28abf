package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Role selects which endpoint of the event server a client attaches to.
type Role string

const (
	// RoleScreen is the presenter console and the shared display.
	RoleScreen Role = "screen"
	// RoleH5 is a participant device.
	RoleH5 Role = "h5"
)

// DefaultScreenType is sent by presenter consoles that do not set one.
const DefaultScreenType = "console"

// ErrMissingActivity is returned when connect options carry no activity id.
var ErrMissingActivity = errors.New("activity id is required to connect")

// ConnectOptions describe which session a client joins.
type ConnectOptions struct {
	Role       Role
	ActivityID string
	ScreenType string
	Token      string
}

// Target builds the endpoint url and connection params for base, for example
// wss://events.example.com/ws.
func (o ConnectOptions) Target(base string) (string, url.Values, error) {
	if o.ActivityID == "" {
		return "", nil, ErrMissingActivity
	}
	if base == "" {
		return "", nil, errors.New("websocket base url is required")
	}

	params := url.Values{}
	params.Set("activityId", o.ActivityID)

	var path string
	switch o.Role {
	case RoleScreen, "":
		path = "screen"
		screenType := o.ScreenType
		if screenType == "" {
			screenType = DefaultScreenType
		}
		params.Set("type", screenType)
	case RoleH5:
		path = "h5"
		if o.Token != "" {
			params.Set("token", o.Token)
		}
	default:
		return "", nil, fmt.Errorf("unknown connection role %q", o.Role)
	}

	return strings.TrimRight(base, "/") + "/" + path, params, nil
}
