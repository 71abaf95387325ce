package model

// Agent is a support agent who can be assigned tasks and receive
// notifications.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// Role groups agents for bulk recipient resolution.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a customer organization. The two project-lead references
// point at client users and back the LIDER_PROYECTO recipient types.
type Client struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ProjectLead1ID *string `json:"project_lead1_id,omitempty"`
	ProjectLead2ID *string `json:"project_lead2_id,omitempty"`
}

// ClientUser is an end user belonging to a client organization.
type ClientUser struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}
