package model

import "time"

// ResourceKind identifies one of the three declarative resource types the
// registry and controllers manage.
type ResourceKind string

const (
	KindSource   ResourceKind = "Source"
	KindWorkflow ResourceKind = "Workflow"
	KindSink     ResourceKind = "Sink"
)

// SourceType is the kind of trigger a Source reacts to. Only Webhook is
// fully wired; the others are admitted and reconciled to Ready=false with
// a NotImplemented condition, matching their status in original_source.
type SourceType string

const (
	SourceWebhook    SourceType = "webhook"
	SourceChat       SourceType = "chat"
	SourceSchedule   SourceType = "schedule"
	SourceAPI        SourceType = "api"
	SourceKubernetes SourceType = "kubernetes"
)

// WebhookSourceConfig configures a webhook-triggered Source.
type WebhookSourceConfig struct {
	Path    string              `json:"path"`
	Filters map[string][]string `json:"filters,omitempty"`
}

// Source is a declarative trigger binding a source of events to a
// Workflow.
type Source struct {
	Name            string              `json:"name"`
	Type            SourceType          `json:"type"`
	Webhook         WebhookSourceConfig `json:"webhook,omitempty"`
	TriggerWorkflow string              `json:"triggerWorkflow"`
	Context         map[string]string   `json:"context,omitempty"`
	Status          SourceStatus        `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type SourceStatus struct {
	Ready           bool       `json:"ready"`
	LastEventTime   *time.Time `json:"lastEventTime,omitempty"`
	EventsProcessed int64      `json:"eventsProcessed"`
	Reason          string     `json:"reason,omitempty"`
}

// StepKind tags the variant of a WorkflowStep, mirroring the original
// Rust StepType enum.
type StepKind string

const (
	StepCLI         StepKind = "cli"
	StepAgent       StepKind = "agent"
	StepConditional StepKind = "conditional"
)

// WorkflowStep is a tagged-union step definition: exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type WorkflowStep struct {
	Name             string   `json:"name"`
	Kind             StepKind `json:"kind"`
	Command          string   `json:"command,omitempty"`          // cli
	Goal             string   `json:"goal,omitempty"`             // agent
	Tools            []string `json:"tools,omitempty"`            // agent
	MaxIterations    int      `json:"maxIterations,omitempty"`    // agent
	ApprovalRequired bool     `json:"approvalRequired,omitempty"` // agent
	Condition        string        `json:"condition,omitempty"` // conditional
	ThenAgent        *WorkflowStep `json:"thenAgent,omitempty"` // conditional, run in-line when matched
	TimeoutSeconds   int           `json:"timeoutSeconds,omitempty"`
}

// OutputDef maps a named workflow output to a template expression
// evaluated against the final WorkflowContext.
type OutputDef struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LLMConfig selects and configures the LLM provider a Workflow's agent
// steps use.
type LLMConfig struct {
	Provider string `json:"provider"` // anthropic | openai | mock
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// Workflow is a declarative, ordered sequence of steps plus the sinks
// that receive its results.
type Workflow struct {
	Name      string         `json:"name"`
	LLM       LLMConfig      `json:"llm,omitempty"`
	Steps     []WorkflowStep `json:"steps"`
	Outputs   []OutputDef    `json:"outputs,omitempty"`
	Sinks     []string       `json:"sinks,omitempty"` // Sink names
	Status    WorkflowStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type WorkflowStatus struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// SinkType is the kind of external system a Sink delivers results to.
type SinkType string

const (
	SinkSlack        SinkType = "slack"
	SinkAlertManager SinkType = "alertmanager"
	SinkPrometheus   SinkType = "prometheus"
	SinkJira         SinkType = "jira"
	SinkPagerDuty    SinkType = "pagerduty"
	SinkWorkflow     SinkType = "workflow"
	SinkStdout       SinkType = "stdout"
)

// SinkConfig is a flat struct carrying every sink kind's optional fields,
// mirroring original_source's crd/sink.rs.
type SinkConfig struct {
	// slack
	Channel string `json:"channel,omitempty"`
	BotToken string `json:"botToken,omitempty"`
	// alertmanager / pagerduty
	Endpoint   string `json:"endpoint,omitempty"`
	Action     string `json:"action,omitempty"`
	RoutingKey string `json:"routingKey,omitempty"`
	// prometheus
	Pushgateway string `json:"pushgateway,omitempty"`
	Job         string `json:"job,omitempty"`
	// jira
	Project           string `json:"project,omitempty"`
	IssueType         string `json:"issueType,omitempty"`
	CredentialsSecret string `json:"credentialsSecret,omitempty"`
	// workflow chaining
	WorkflowName    string `json:"workflowName,omitempty"`
	TriggerOnPhase  string `json:"triggerOnPhase,omitempty"`
	// stdout
	Format string `json:"format,omitempty"` // json | text
	Pretty bool   `json:"pretty,omitempty"`
	// generic
	Template string `json:"template,omitempty"`
}

// Sink is a declarative delivery target for WorkflowRun results.
type Sink struct {
	Name      string     `json:"name"`
	Type      SinkType   `json:"type"`
	Config    SinkConfig `json:"config"`
	Condition string     `json:"condition,omitempty"`
	Status    SinkStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type SinkStatus struct {
	Ready        bool       `json:"ready"`
	LastSentTime *time.Time `json:"lastSentTime,omitempty"`
	MessagesSent int64      `json:"messagesSent"`
	LastError    string     `json:"lastError,omitempty"`
}
