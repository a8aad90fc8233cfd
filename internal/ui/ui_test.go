package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/history"
)

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)
			if got := p.Confirm("Deploying web is still running. Cancel it?"); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if !strings.Contains(out.String(), "Cancel it?") {
				t.Errorf("prompt not written, got %q", out.String())
			}
		})
	}
}

func TestFormatProcesses(t *testing.T) {
	if got := FormatProcesses(map[string]int32{"worker": 1, "web": 2}); got != "web=2 worker=1" {
		t.Errorf("unexpected %q", got)
	}
	if got := FormatProcesses(nil); got != "-" {
		t.Errorf("unexpected %q", got)
	}
}

func TestRenderHistoryItem(t *testing.T) {
	now := timestamppb.New(time.Now())
	deploy := RenderHistoryItem(history.DeploymentItem{Deployment: &api.ExpandedDeployment{
		Name:       "apps/1/deployments/9",
		NewRelease: &api.Release{Name: "apps/1/releases/7"},
		CreateTime: now,
	}})
	if !strings.Contains(deploy, "deploy") || !strings.Contains(deploy, "release 7") {
		t.Errorf("unexpected deployment row %q", deploy)
	}

	scale := RenderHistoryItem(history.ScaleItem{Scale: &api.ScaleRequest{
		Name:         "apps/1/releases/7/scales/3",
		NewProcesses: map[string]int32{"web": 3},
		CreateTime:   now,
	}})
	if !strings.Contains(scale, "scale") || !strings.Contains(scale, "web=3") {
		t.Errorf("unexpected scale row %q", scale)
	}
}

func TestRenderDeletedApp(t *testing.T) {
	row := RenderApp(&api.App{Name: "apps/1", DisplayName: "web [DELETED]", DeleteTime: timestamppb.Now()})
	if !strings.Contains(row, "web [DELETED]") || !strings.Contains(row, "apps/1") {
		t.Errorf("unexpected row %q", row)
	}
}
