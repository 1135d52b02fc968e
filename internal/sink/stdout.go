package sink

import (
	"context"
	"fmt"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/template"
)

// stdoutSink writes the run result to the process log, useful for local
// development and as the zero-configuration default sink. Like
// slackSink and httpSink, a configured Template renders against data
// instead of the default JSON summary.
type stdoutSink struct {
	pretty   bool
	format   string
	template string
}

func newStdoutSink(cfg model.SinkConfig) *stdoutSink {
	return &stdoutSink{pretty: cfg.Pretty, format: cfg.Format, template: cfg.Template}
}

func (s *stdoutSink) Send(_ context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error {
	if s.template != "" {
		rendered := template.Render(s.template, data)
		if s.format == "text" {
			fmt.Println(rendered)
			return nil
		}
		logger.Printf("stdout sink: %s", rendered)
		return nil
	}

	summary := runSummary(run, wf, data)
	if s.pretty {
		fmt.Println(marshalCompact(summary))
		return nil
	}
	logger.Printf("stdout sink: %s", marshalCompact(summary))
	return nil
}
