// Package agent applies model-proposed actions to a project's file set and
// orchestrates the chat turn lifecycle around them.
package agent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// FileWriter is the slice of the file store the applier persists through.
type FileWriter interface {
	SaveFile(projectID string, file types.FileNode) error
	DeleteFile(projectID, fileID string) error
}

// Applier applies agent actions in order against an in-memory file list,
// persisting each mutation as it goes.
type Applier struct {
	store FileWriter
}

// NewApplier creates an applier backed by the given store.
func NewApplier(store FileWriter) *Applier {
	return &Applier{store: store}
}

// Apply runs the actions strictly in order and returns the resulting file
// list plus one result per attempted action. Failures are isolated: a failed
// action leaves the list untouched and the batch continues. File lookup is
// by name; a create whose name already exists behaves as an update of that
// node. Terminal commands are recorded, never executed.
func (a *Applier) Apply(projectID string, files []types.FileNode, actions []types.AgentAction) ([]types.FileNode, []types.ActionResult) {
	current := types.CloneFiles(files)
	results := make([]types.ActionResult, 0, len(actions))

	for _, action := range actions {
		var err error
		switch action.Kind {
		case types.ActionCreate, types.ActionUpdate:
			current, err = a.applyWrite(projectID, current, action)
		case types.ActionDelete:
			current, err = a.applyDelete(projectID, current, action)
		case types.ActionTerminalCommand:
			err = a.recordCommand(action)
		default:
			err = fmt.Errorf("unknown action %q", action.Kind)
		}

		if err != nil {
			logging.AgentError("Action %s %q failed: %v", action.Kind, action.Path, err)
		}
		results = append(results, types.ActionResult{Action: action, OK: err == nil, Err: err})
	}

	return current, results
}

func (a *Applier) applyWrite(projectID string, files []types.FileNode, action types.AgentAction) ([]types.FileNode, error) {
	if action.Path == "" {
		return files, fmt.Errorf("missing path")
	}

	for i := range files {
		if files[i].Name == action.Path {
			updated := files[i]
			updated.Content = action.Content
			updated.LastModified = types.NowMillis()
			if err := a.store.SaveFile(projectID, updated); err != nil {
				return files, err
			}
			files[i] = updated
			logging.AgentDebug("Updated %s (%d bytes)", action.Path, len(action.Content))
			return files, nil
		}
	}

	node := types.FileNode{
		ID:           fmt.Sprintf("f_%s", uuid.NewString()),
		Name:         action.Path,
		Content:      action.Content,
		Language:     types.LanguageForPath(action.Path),
		LastModified: types.NowMillis(),
		IsBinary:     strings.HasPrefix(action.Content, "data:"),
	}
	if err := a.store.SaveFile(projectID, node); err != nil {
		return files, err
	}
	logging.AgentDebug("Created %s (%d bytes)", action.Path, len(action.Content))
	return append(files, node), nil
}

func (a *Applier) applyDelete(projectID string, files []types.FileNode, action types.AgentAction) ([]types.FileNode, error) {
	if action.Path == "" {
		return files, fmt.Errorf("missing path")
	}

	for i := range files {
		if files[i].Name == action.Path {
			if err := a.store.DeleteFile(projectID, files[i].ID); err != nil {
				return files, err
			}
			logging.AgentDebug("Deleted %s", action.Path)
			return append(files[:i:i], files[i+1:]...), nil
		}
	}

	// Deleting a file that does not exist is a silent no-op
	return files, nil
}

func (a *Applier) recordCommand(action types.AgentAction) error {
	if action.Command == "" {
		return fmt.Errorf("missing command")
	}
	logging.Agent("Terminal command proposed (not executed): %s", action.Command)
	return nil
}
