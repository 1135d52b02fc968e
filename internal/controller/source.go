package controller

import (
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
)

// SourceController validates a Source's configuration is admissible and
// marks it Ready, mirroring original_source's SourceController::reconcile
// (register_webhook + status patch), minus the actual webhook-route
// registration: the ingress dispatcher already resolves Sources by path
// on demand via Registry.SourceByWebhookPath, so there is no separate
// route table to populate here.
type SourceController struct {
	reg *registry.Registry
}

func (c *SourceController) reconcile(s model.Source) {
	ready, reason := c.validate(s)
	if s.Status.Ready == ready && s.Status.Reason == reason {
		return
	}
	s.Status.Ready = ready
	s.Status.Reason = reason
	c.reg.PutSource(s)
	logger.Printf("source %s ready=%v reason=%q", s.Name, ready, reason)
}

func (c *SourceController) validate(s model.Source) (bool, string) {
	if s.TriggerWorkflow == "" {
		return false, "triggerWorkflow is required"
	}
	if _, ok := c.reg.GetWorkflow(s.TriggerWorkflow); !ok {
		return false, "triggerWorkflow " + s.TriggerWorkflow + " does not exist"
	}

	switch s.Type {
	case model.SourceWebhook:
		if s.Webhook.Path == "" {
			return false, "webhook.path is required"
		}
		return true, "configured"
	case model.SourceChat, model.SourceSchedule, model.SourceAPI, model.SourceKubernetes:
		return false, string(s.Type) + " source type is not yet implemented"
	default:
		return false, "unknown source type"
	}
}
