package model

// Trigger is the category of task event that can activate notification
// rules.
type Trigger string

const (
	TriggerCreated          Trigger = "CREACION"
	TriggerClosed           Trigger = "CIERRE"
	TriggerModified         Trigger = "MODIFICACION"
	TriggerMessage          Trigger = "MENSAJE"
	TriggerReply            Trigger = "RESPUESTA"
	TriggerNote             Trigger = "NOTA"
	TriggerStatusChange     Trigger = "CAMBIO_ESTADO"
	TriggerPriorityChange   Trigger = "CAMBIO_PRIORIDAD"
	TriggerTypeChange       Trigger = "CAMBIO_TIPO"
	TriggerModuleChange     Trigger = "CAMBIO_MODULO"
	TriggerReleaseChange    Trigger = "CAMBIO_RELEASE"
	TriggerAssignmentChange Trigger = "CAMBIO_ASIGNACION"
)

// ConditionOperator compares a task field against a rule condition value.
type ConditionOperator string

const (
	OpEquals     ConditionOperator = "eq"
	OpNotEquals  ConditionOperator = "neq"
	OpIsNull     ConditionOperator = "null"
	OpIsNotNull  ConditionOperator = "not_null"
	OpIn         ConditionOperator = "in"
	OpNotIn      ConditionOperator = "not_in"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
)

// WorkflowCondition is one predicate of a rule. Conditions sharing an
// OrGroup are OR-combined; distinct groups are AND-combined.
type WorkflowCondition struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	Field      string            `json:"field"`
	Operator   ConditionOperator `json:"operator"`
	Value      string            `json:"value"`
	OrGroup    int               `json:"or_group"`
}

// RecipientType selects the resolver used to expand a rule recipient
// entry into concrete email addresses.
type RecipientType string

const (
	RecipientClientUsers   RecipientType = "TODOS_USUARIOS_CLIENTE"
	RecipientClientCreator RecipientType = "CREADOR_CLIENTE"
	RecipientProjectLead1  RecipientType = "LIDER_PROYECTO_1"
	RecipientProjectLead2  RecipientType = "LIDER_PROYECTO_2"
	RecipientAssignedAgent RecipientType = "AGENTE_ASIGNADO"
	RecipientCreatorAgent  RecipientType = "AGENTE_CREADOR"
	RecipientReviewerAgent RecipientType = "AGENTE_REVISOR"
	RecipientAgentList     RecipientType = "AGENTES"
	RecipientRoleList      RecipientType = "ROLES"
	RecipientEmailList     RecipientType = "EMAILS"
)

// WorkflowRecipient is one configured recipient entry of a rule. Value
// carries a JSON id/email array for the list types and is unused for the
// task-relative types.
type WorkflowRecipient struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	Type       RecipientType `json:"type"`
	Value      string        `json:"value"`
	CC         bool          `json:"cc"`
}

// ActionKind identifies the task field a workflow action mutates.
type ActionKind string

const (
	ActionSetStatus     ActionKind = "CAMBIAR_ESTADO"
	ActionSetPriority   ActionKind = "CAMBIAR_PRIORIDAD"
	ActionSetType       ActionKind = "CAMBIAR_TIPO"
	ActionSetModule     ActionKind = "CAMBIAR_MODULO"
	ActionSetRelease    ActionKind = "CAMBIAR_RELEASE"
	ActionSetAssignment ActionKind = "CAMBIAR_ASIGNACION"
)

// WorkflowAction is a field mutation a matching rule applies to the task.
type WorkflowAction struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Kind       ActionKind `json:"kind"`
	// TargetID is the id of the value to set (status id, agent id, ...).
	TargetID string `json:"target_id"`
}

// Workflow is a configured notification rule: when its trigger fires and
// its conditions match the task, it contributes recipients, an optional
// template/subject, and optional field actions.
type Workflow struct {
	ID string `json:"id"`

	// Name labels the rule for administrators.
	Name string `json:"name"`

	// Trigger is the event category that activates the rule.
	Trigger Trigger `json:"trigger"`

	// Active disables the rule without deleting it.
	Active bool `json:"active"`

	// Priority orders evaluation; lower values evaluate first.
	Priority int `json:"priority"`

	// StopOnMatch halts evaluation after this rule matches.
	StopOnMatch bool `json:"stop_on_match"`

	// TemplateID selects the message template, if set.
	TemplateID *string `json:"template_id,omitempty"`

	// Subject overrides the template subject, if non-empty.
	Subject string `json:"subject"`

	// CopyLead1 and CopyLead2 CC the client's project leads on match.
	CopyLead1 bool `json:"copy_lead1"`
	CopyLead2 bool `json:"copy_lead2"`

	Conditions []WorkflowCondition `json:"conditions"`
	Recipients []WorkflowRecipient `json:"recipients"`
	Actions    []WorkflowAction    `json:"actions"`
}

// Template is a reusable notification message body with a default
// subject. Bodies use Go template placeholders over the task snapshot.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}
