// Package catalog defines the fixed registry of bulk fleet actions.
// The registry is immutable after process start and safe for concurrent
// lookup by any number of in-flight batches.
package catalog

import (
	"github.com/virtualdesk/fleet-console/internal/domain"
)

// Action describes one supported bulk operation: where submissions go, how
// the outcome is phrased in reports, and whether the caller must confirm
// before executing it.
type Action struct {
	Name                 string `json:"name"`
	Endpoint             string `json:"-"`
	Label                string `json:"label"` // past tense, for summaries
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

// Supported action names.
const (
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionRestart     = "restart"
	ActionTag         = "tag"
	ActionDelete      = "delete"
	ActionExport      = "export"
	ActionUpdate      = "update"
	ActionApplyPolicy = "apply-policy"
	ActionMove        = "move"
	ActionArchive     = "archive"
)

// actions is the closed registry, keyed by action name. Defined once,
// never mutated.
var actions = map[string]Action{
	ActionStart:       {Name: ActionStart, Endpoint: "/bulk-operations/start", Label: "started"},
	ActionStop:        {Name: ActionStop, Endpoint: "/bulk-operations/stop", Label: "stopped"},
	ActionRestart:     {Name: ActionRestart, Endpoint: "/bulk-operations/restart", Label: "restarted"},
	ActionTag:         {Name: ActionTag, Endpoint: "/bulk-operations/tag", Label: "tagged"},
	ActionDelete:      {Name: ActionDelete, Endpoint: "/bulk-operations/delete", Label: "deleted", RequiresConfirmation: true},
	ActionExport:      {Name: ActionExport, Endpoint: "/bulk-operations/export", Label: "exported"},
	ActionUpdate:      {Name: ActionUpdate, Endpoint: "/bulk-operations/update", Label: "updated"},
	ActionApplyPolicy: {Name: ActionApplyPolicy, Endpoint: "/bulk-operations/apply-policy", Label: "applied policy to", RequiresConfirmation: true},
	ActionMove:        {Name: ActionMove, Endpoint: "/bulk-operations/move", Label: "moved"},
	ActionArchive:     {Name: ActionArchive, Endpoint: "/bulk-operations/archive", Label: "archived", RequiresConfirmation: true},
}

// order fixes the listing order for the UI.
var order = []string{
	ActionStart, ActionStop, ActionRestart, ActionTag, ActionDelete,
	ActionExport, ActionUpdate, ActionApplyPolicy, ActionMove, ActionArchive,
}

// Lookup returns the registered action for name, or ErrUnknownAction.
func Lookup(name string) (Action, error) {
	a, ok := actions[name]
	if !ok {
		return Action{}, domain.ErrUnknownAction
	}
	return a, nil
}

// RequiresConfirmation reports whether the named action needs caller-side
// confirmation before submission. Unknown actions report false.
func RequiresConfirmation(name string) bool {
	return actions[name].RequiresConfirmation
}

// All returns every registered action in stable listing order.
func All() []Action {
	out := make([]Action, 0, len(order))
	for _, name := range order {
		out = append(out, actions[name])
	}
	return out
}
