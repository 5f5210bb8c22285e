package domain

import "strings"

// CreateParams are the caller-supplied parameters of a create-session request.
type CreateParams struct {
	WorkspaceID string `json:"workspaceId"`
	ProjectName string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template,omitempty"`
}

// Validate checks the parameters locally, before any network call.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.ProjectName) == "" {
		return NewSubSystemError("orchestrator", "CreateParams.Validate", ErrInvalidInput, "project name is required")
	}
	return nil
}

// Normalized returns a copy with surrounding whitespace trimmed from every field.
func (p CreateParams) Normalized() CreateParams {
	return CreateParams{
		WorkspaceID: strings.TrimSpace(p.WorkspaceID),
		ProjectName: strings.TrimSpace(p.ProjectName),
		Description: strings.TrimSpace(p.Description),
		Template:    strings.TrimSpace(p.Template),
	}
}
