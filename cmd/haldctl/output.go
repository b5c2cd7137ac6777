// Copyright 2023 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/halldyll/haldctl/pkg/plan"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/reconcile"
	"github.com/halldyll/haldctl/pkg/state"
)

// OutputFormatter renders plans, status and reconciliation results either
// as colored text tables or as JSON for scripting.
type OutputFormatter struct {
	json bool
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{json: format == "json"}
}

func (f *OutputFormatter) FormatPlan(p plan.Plan) string {
	if f.json {
		return mustJSON(planJSON{
			ConfigHash:       p.ConfigHash,
			ActionCount:      p.ActionCount(),
			Creates:          p.CreateCount(),
			Deletes:          p.DeleteCount(),
			PassesGuardrails: p.PassesGuardrails,
			Actions:          actionsJSON(p.Actions),
		})
	}

	if p.IsEmpty() {
		return color.GreenString("✓") + " No changes required - infrastructure is up to date.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nDeployment Plan\n   Config hash: %s\n\n", shorten(p.ConfigHash, 8))

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"#", "Action", "Resource", "Reason"})
	for i, a := range p.Actions {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			formatActionType(a.Type),
			a.ResourceName,
			shorten(a.Reason, 40),
		})
	}
	table.Render()
	b.Write(buf.Bytes())

	updates := p.ActionCount() - p.CreateCount() - p.DeleteCount()
	fmt.Fprintf(&b, "\nPlan: %s to create, %s to update, %s to destroy\n",
		color.GreenString(fmt.Sprintf("%d", p.CreateCount())),
		color.YellowString(fmt.Sprintf("%d", updates)),
		color.RedString(fmt.Sprintf("%d", p.DeleteCount())))

	if !p.PassesGuardrails {
		b.WriteString("\n" + color.YellowString("⚠") + " Guardrail violations:\n")
		for _, v := range p.GuardrailViolations {
			fmt.Fprintf(&b, "   - %s\n", v)
		}
	}

	return b.String()
}

func (f *OutputFormatter) FormatStatus(project, environment string, pods []provider.ObservedPod, health []provider.HealthStatus) string {
	if f.json {
		return mustJSON(statusJSON{
			Project:     project,
			Environment: environment,
			Pods:        podsJSON(pods),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nProject: %s/%s\n\n", project, environment)

	if len(pods) == 0 {
		b.WriteString("   No pods deployed.\n")
		return b.String()
	}

	healthByPod := map[string]provider.HealthStatus{}
	for _, h := range health {
		healthByPod[h.PodID] = h
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Name", "Status", "GPU", "Image", "ID"})

	var running, stopped, errored int
	for _, p := range pods {
		name := p.PodName
		if name == "" {
			name = p.Name
		}
		indicator := ""
		if h, ok := healthByPod[p.ID]; ok {
			if h.Healthy {
				indicator = " " + color.GreenString("✓")
			} else {
				indicator = " " + color.RedString("✗")
			}
		}
		switch p.Status {
		case provider.PodStatusRunning:
			running++
		case provider.PodStatusStopped, provider.PodStatusExited:
			stopped++
		case provider.PodStatusUnknown:
			errored++
		}
		table.Append([]string{
			name,
			formatPodStatus(p.Status) + indicator,
			fmt.Sprintf("%dx %s", p.GPUCount, orUnknown(p.GPUType)),
			shorten(p.Image, 30),
			shorten(p.ID, 12),
		})
	}
	table.Render()
	b.Write(buf.Bytes())

	fmt.Fprintf(&b, "\nStatus: %d running, %d stopped, %d errors\n", running, stopped, errored)

	var withEndpoints []provider.ObservedPod
	for _, p := range pods {
		if len(p.Endpoints) > 0 {
			withEndpoints = append(withEndpoints, p)
		}
	}
	if len(withEndpoints) > 0 {
		b.WriteString("\nEndpoints:\n")
		for _, p := range withEndpoints {
			name := p.PodName
			if name == "" {
				name = p.Name
			}
			for port, url := range p.Endpoints {
				fmt.Fprintf(&b, "   %s:%d -> %s\n", name, port, url)
			}
		}
	}

	return b.String()
}

func (f *OutputFormatter) FormatDrift(r reconcile.DriftReport) string {
	if f.json {
		return mustJSON(r)
	}
	if r.IsConverged() {
		return color.GreenString("✓") + " No drift detected - state is converged.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Drift detected:\n\n", color.YellowString("⚠"))
	for _, name := range r.DriftedResources {
		fmt.Fprintf(&b, "   - %s\n", name)
	}
	fmt.Fprintf(&b, "\n%d/%d resources have drifted.\n", len(r.DriftedResources), r.TotalResources)
	return b.String()
}

func (f *OutputFormatter) FormatReconciliation(r reconcile.Result) string {
	if f.json {
		return mustJSON(r)
	}
	var b strings.Builder
	if r.Success {
		fmt.Fprintf(&b, "%s Reconciliation successful\n\n", color.GreenString("✓"))
	} else {
		fmt.Fprintf(&b, "%s Reconciliation failed\n\n", color.RedString("✗"))
	}
	fmt.Fprintf(&b, "   Created: %d\n   Updated: %d\n   Deleted: %d\n   Unchanged: %d\n",
		r.Created, r.Updated, r.Deleted, r.Unchanged)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n%s Errors:\n", color.YellowString("⚠"))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "   - %s\n", e)
		}
	}
	return b.String()
}

func (f *OutputFormatter) FormatState(s *state.DeploymentState) string {
	if f.json {
		return mustJSON(s)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nState: %s/%s\n\n", s.Project, s.Environment)
	fmt.Fprintf(&b, "   Version: %s\n", s.Version)
	fmt.Fprintf(&b, "   Config hash: %s\n", shorten(s.ConfigHash, 8))
	fmt.Fprintf(&b, "   Last updated: %s\n", s.LastUpdated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "   Pods: %d\n", len(s.Pods))
	fmt.Fprintf(&b, "   Volumes: %d\n", len(s.Volumes))

	if len(s.History) > 0 {
		fmt.Fprintf(&b, "\n   Recent history (%d):\n", len(s.History))
		start := len(s.History) - 5
		if start < 0 {
			start = 0
		}
		for i := len(s.History) - 1; i >= start; i-- {
			entry := s.History[i]
			status := color.GreenString("✓")
			if !entry.Success {
				status = color.RedString("✗")
			}
			fmt.Fprintf(&b, "     %s %s - %s (%s)\n",
				status, entry.Timestamp.Format("2006-01-02 15:04"), entry.Operation, strings.Join(entry.Resources, ", "))
		}
	}

	return b.String()
}

func formatActionType(t plan.ActionType) string {
	switch t {
	case plan.CreatePod:
		return color.GreenString("+create")
	case plan.UpdatePod:
		return color.YellowString("~update")
	case plan.DeletePod:
		return color.RedString("-delete")
	case plan.StopPod:
		return color.YellowString("stop")
	case plan.ResumePod:
		return color.GreenString("resume")
	default:
		return "noop"
	}
}

func formatPodStatus(s provider.PodStatus) string {
	switch s {
	case provider.PodStatusRunning:
		return color.GreenString("running")
	case provider.PodStatusStarting, provider.PodStatusCreating:
		return color.YellowString(strings.ToLower(string(s)))
	case provider.PodStatusStopped, provider.PodStatusExited:
		return color.RedString("stopped")
	default:
		return strings.ToLower(string(s))
	}
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}

type planJSON struct {
	ConfigHash       string       `json:"config_hash"`
	ActionCount      int          `json:"action_count"`
	Creates          int          `json:"creates"`
	Deletes          int          `json:"deletes"`
	PassesGuardrails bool         `json:"passes_guardrails"`
	Actions          []actionJSON `json:"actions"`
}

type actionJSON struct {
	Type     string `json:"type"`
	Resource string `json:"resource"`
	Reason   string `json:"reason"`
}

func actionsJSON(actions []plan.Action) []actionJSON {
	out := make([]actionJSON, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionJSON{Type: a.Type.String(), Resource: a.ResourceName, Reason: a.Reason})
	}
	return out
}

type statusJSON struct {
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	Pods        []podJSON `json:"pods"`
}

type podJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	GPUType  string `json:"gpu_type"`
	GPUCount int    `json:"gpu_count"`
	Image    string `json:"image"`
}

func podsJSON(pods []provider.ObservedPod) []podJSON {
	out := make([]podJSON, 0, len(pods))
	for _, p := range pods {
		name := p.PodName
		if name == "" {
			name = p.Name
		}
		out = append(out, podJSON{
			ID: p.ID, Name: name, Status: string(p.Status),
			GPUType: p.GPUType, GPUCount: p.GPUCount, Image: p.Image,
		})
	}
	return out
}
