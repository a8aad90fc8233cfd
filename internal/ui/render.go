package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"google.golang.org/protobuf/types/known/timestamppb"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/history"
)

const nameWidth = 48

// Pad pads text to width, measuring ANSI-aware width.
func Pad(text string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Left, text)
}

// FormatTime renders a timestamp in local time, or "-" when unset.
func FormatTime(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return "-"
	}
	return ts.AsTime().Local().Format(time.DateTime)
}

// FormatProcesses renders process counts sorted by type, e.g. "web=2 worker=1".
func FormatProcesses(processes map[string]int32) string {
	if len(processes) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(processes))
	for _, name := range slices.Sorted(maps.Keys(processes)) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, processes[name]))
	}
	return strings.Join(parts, " ")
}

// RenderApp renders one row of the app list.
func RenderApp(app *api.App) string {
	name := app.DisplayName
	if name == "" {
		name = app.Name
	}
	if app.IsDeleted() {
		return DeletedStyle.Render(Pad(name, nameWidth)) + DimStyle.Render(app.Name)
	}
	return Pad(name, nameWidth) + DimStyle.Render(app.Name)
}

// RenderRelease renders one row of the release list.
func RenderRelease(r *api.Release) string {
	return Pad(r.Name, nameWidth) + Pad(r.Type.String(), 12) + DimStyle.Render(FormatTime(r.CreateTime))
}

// RenderHistoryItem renders one row of the release history.
func RenderHistoryItem(item history.Item) string {
	switch it := item.(type) {
	case history.DeploymentItem:
		d := it.Deployment
		release := "-"
		if d.NewRelease != nil {
			release = api.ParseIDFromName(d.NewRelease.Name, "releases")
		}
		return DeploymentBadge.Render(Pad("deploy", 8)) +
			Pad(FormatTime(d.CreateTime), 21) +
			Pad(d.Status.String(), 12) +
			"release " + release
	case history.ScaleItem:
		s := it.Scale
		return ScaleBadge.Render(Pad("scale", 8)) +
			Pad(FormatTime(s.CreateTime), 21) +
			Pad(s.State.String(), 12) +
			FormatProcesses(s.NewProcesses)
	}
	return ""
}

// RenderDeploymentEvent renders one progress line of a deployment.
func RenderDeploymentEvent(ev *api.DeploymentEvent) string {
	line := fmt.Sprintf("%s %s %s", FormatTime(ev.CreateTime), Pad(ev.JobType, 10), ev.JobState)
	if ev.Error != "" {
		return ErrorStyle.Render(line + ": " + ev.Error)
	}
	return line
}
