package controller

import (
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
)

// SinkController validates a Sink's per-type required configuration,
// mirroring original_source's SinkController::reconcile match over
// CRDSinkType (Slack needs channel+bot_token, Jira needs
// project+credentials_secret, Stdout needs nothing).
type SinkController struct {
	reg *registry.Registry
}

func (c *SinkController) reconcile(s model.Sink) {
	ready, reason := c.validate(s)
	if s.Status.Ready == ready {
		return
	}
	s.Status.Ready = ready
	if !ready {
		s.Status.LastError = reason
	} else {
		s.Status.LastError = ""
	}
	c.reg.PutSink(s)
	logger.Printf("sink %s ready=%v reason=%q", s.Name, ready, reason)
}

func (c *SinkController) validate(s model.Sink) (bool, string) {
	switch s.Type {
	case model.SinkStdout:
		return true, "configured"
	case model.SinkSlack:
		if s.Config.Channel == "" || s.Config.BotToken == "" {
			return false, "slack sink missing channel or botToken"
		}
		return true, "configured"
	case model.SinkJira:
		if s.Config.Project == "" || s.Config.CredentialsSecret == "" {
			return false, "jira sink missing project or credentialsSecret"
		}
		return true, "configured"
	case model.SinkAlertManager, model.SinkPagerDuty:
		if s.Config.Endpoint == "" && s.Config.RoutingKey == "" {
			return false, "missing endpoint or routingKey"
		}
		return true, "configured"
	case model.SinkPrometheus:
		if s.Config.Pushgateway == "" {
			return false, "prometheus sink missing pushgateway"
		}
		return true, "configured"
	case model.SinkWorkflow:
		if s.Config.WorkflowName == "" {
			return false, "workflow sink missing workflowName"
		}
		if _, ok := c.reg.GetWorkflow(s.Config.WorkflowName); !ok {
			return false, "target workflow " + s.Config.WorkflowName + " does not exist"
		}
		return true, "configured"
	default:
		return false, "unknown sink type"
	}
}
