package api

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// ReleaseType distinguishes releases that change code from releases that only change configuration.
type ReleaseType int32

const (
	ReleaseTypeAny ReleaseType = iota
	ReleaseTypeCode
	ReleaseTypeConfig
)

func (t ReleaseType) String() string {
	switch t {
	case ReleaseTypeAny:
		return "any"
	case ReleaseTypeCode:
		return "code"
	case ReleaseTypeConfig:
		return "config"
	}
	return fmt.Sprintf("ReleaseType(%d)", int32(t))
}

// ScaleRequestState is the lifecycle state of a ScaleRequest.
type ScaleRequestState int32

const (
	ScaleRequestPending ScaleRequestState = iota
	ScaleRequestCancelled
	ScaleRequestComplete
)

func (s ScaleRequestState) String() string {
	switch s {
	case ScaleRequestPending:
		return "pending"
	case ScaleRequestCancelled:
		return "cancelled"
	case ScaleRequestComplete:
		return "complete"
	}
	return fmt.Sprintf("ScaleRequestState(%d)", int32(s))
}

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus int32

const (
	DeploymentPending DeploymentStatus = iota
	DeploymentFailed
	DeploymentRunning
	DeploymentComplete
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentPending:
		return "pending"
	case DeploymentFailed:
		return "failed"
	case DeploymentRunning:
		return "running"
	case DeploymentComplete:
		return "complete"
	}
	return fmt.Sprintf("DeploymentStatus(%d)", int32(s))
}

// JobState is the state of a job started by a deployment.
type JobState int32

const (
	JobStatePending  JobState = 0
	JobStateBlocked  JobState = 1
	JobStateStarting JobState = 2
	JobStateUp       JobState = 3
	JobStateStopping JobState = 5
	JobStateDown     JobState = 6
	JobStateCrashed  JobState = 7
	JobStateFailed   JobState = 8
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateBlocked:
		return "blocked"
	case JobStateStarting:
		return "starting"
	case JobStateUp:
		return "up"
	case JobStateStopping:
		return "stopping"
	case JobStateDown:
		return "down"
	case JobStateCrashed:
		return "crashed"
	case JobStateFailed:
		return "failed"
	}
	return fmt.Sprintf("JobState(%d)", int32(s))
}

// App is an application registered with the controller. Name has the form "apps/<id>".
type App struct {
	Name          string                 `json:"name"`
	DisplayName   string                 `json:"displayName,omitempty"`
	Labels        map[string]string      `json:"labels,omitempty"`
	DeployTimeout int32                  `json:"deployTimeout,omitempty"`
	Strategy      string                 `json:"strategy,omitempty"`
	Release       string                 `json:"release,omitempty"`
	CreateTime    *timestamppb.Timestamp `json:"createTime,omitempty"`
	UpdateTime    *timestamppb.Timestamp `json:"updateTime,omitempty"`
	DeleteTime    *timestamppb.Timestamp `json:"deleteTime,omitempty"`
}

func (a *App) GetName() string {
	if a == nil {
		return ""
	}
	return a.Name
}

func (a *App) GetCreateTime() *timestamppb.Timestamp {
	if a == nil {
		return nil
	}
	return a.CreateTime
}

// IsDeleted reports whether the controller has soft deleted the app.
func (a *App) IsDeleted() bool {
	return a != nil && a.DeleteTime != nil
}

// Port is a port exposed by a process type.
type Port struct {
	Port     int32  `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// ProcessType describes how to run one process of a release.
type ProcessType struct {
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Ports   []*Port           `json:"ports,omitempty"`
	Omni    bool              `json:"omni,omitempty"`
	Service string            `json:"service,omitempty"`
}

// Release is an immutable combination of artifacts, environment and process types.
// Name has the form "apps/<app id>/releases/<release id>".
type Release struct {
	Name       string                  `json:"name"`
	Artifacts  []string                `json:"artifacts,omitempty"`
	Env        map[string]string       `json:"env,omitempty"`
	Labels     map[string]string       `json:"labels,omitempty"`
	Processes  map[string]*ProcessType `json:"processes,omitempty"`
	Type       ReleaseType             `json:"type,omitempty"`
	CreateTime *timestamppb.Timestamp  `json:"createTime,omitempty"`
	DeleteTime *timestamppb.Timestamp  `json:"deleteTime,omitempty"`
}

func (r *Release) GetName() string {
	if r == nil {
		return ""
	}
	return r.Name
}

func (r *Release) GetCreateTime() *timestamppb.Timestamp {
	if r == nil {
		return nil
	}
	return r.CreateTime
}

// DeploymentProcessTags holds the placement tags of one process type.
type DeploymentProcessTags struct {
	Tags map[string]string `json:"tags,omitempty"`
}

// ScaleRequest asks the controller to change process counts of a release.
// Name has the form "apps/<app id>/releases/<release id>/scales/<id>".
type ScaleRequest struct {
	Parent       string                            `json:"parent,omitempty"`
	Name         string                            `json:"name"`
	State        ScaleRequestState                 `json:"state,omitempty"`
	OldProcesses map[string]int32                  `json:"oldProcesses,omitempty"`
	NewProcesses map[string]int32                  `json:"newProcesses,omitempty"`
	OldTags      map[string]*DeploymentProcessTags `json:"oldTags,omitempty"`
	NewTags      map[string]*DeploymentProcessTags `json:"newTags,omitempty"`
	CreateTime   *timestamppb.Timestamp            `json:"createTime,omitempty"`
	UpdateTime   *timestamppb.Timestamp            `json:"updateTime,omitempty"`
}

func (s *ScaleRequest) GetName() string {
	if s == nil {
		return ""
	}
	return s.Name
}

func (s *ScaleRequest) GetCreateTime() *timestamppb.Timestamp {
	if s == nil {
		return nil
	}
	return s.CreateTime
}

// ExpandedDeployment is a deployment with its releases resolved.
// Name has the form "apps/<app id>/deployments/<id>".
type ExpandedDeployment struct {
	Name          string                            `json:"name"`
	OldRelease    *Release                          `json:"oldRelease,omitempty"`
	NewRelease    *Release                          `json:"newRelease,omitempty"`
	Type          ReleaseType                       `json:"type,omitempty"`
	Strategy      string                            `json:"strategy,omitempty"`
	Status        DeploymentStatus                  `json:"status,omitempty"`
	Processes     map[string]int32                  `json:"processes,omitempty"`
	Tags          map[string]*DeploymentProcessTags `json:"tags,omitempty"`
	DeployTimeout int32                             `json:"deployTimeout,omitempty"`
	CreateTime    *timestamppb.Timestamp            `json:"createTime,omitempty"`
	ExpireTime    *timestamppb.Timestamp            `json:"expireTime,omitempty"`
	EndTime       *timestamppb.Timestamp            `json:"endTime,omitempty"`
}

func (d *ExpandedDeployment) GetName() string {
	if d == nil {
		return ""
	}
	return d.Name
}

func (d *ExpandedDeployment) GetCreateTime() *timestamppb.Timestamp {
	if d == nil {
		return nil
	}
	return d.CreateTime
}

// DeploymentEvent reports progress of a job started by a deployment.
type DeploymentEvent struct {
	Parent     string                 `json:"parent,omitempty"`
	JobType    string                 `json:"jobType,omitempty"`
	JobState   JobState               `json:"jobState,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreateTime *timestamppb.Timestamp `json:"createTime,omitempty"`
}

// Page is one message of a list stream. Items are unique by name within a
// message; the stream may later send items again when they change.
type Page[T any] struct {
	Items         []*T   `json:"items,omitempty"`
	PageComplete  bool   `json:"pageComplete,omitempty"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type (
	StreamAppsResponse        = Page[App]
	StreamReleasesResponse    = Page[Release]
	StreamScalesResponse      = Page[ScaleRequest]
	StreamDeploymentsResponse = Page[ExpandedDeployment]
)

// ListOptions are the request fields shared by every list stream.
type ListOptions struct {
	PageSize      int32    `json:"pageSize,omitempty"`
	PageToken     string   `json:"pageToken,omitempty"`
	NameFilters   []string `json:"nameFilters,omitempty"`
	StreamUpdates bool     `json:"streamUpdates,omitempty"`
	StreamCreates bool     `json:"streamCreates,omitempty"`
}

func (o *ListOptions) SetPageSize(n int32)          { o.PageSize = n }
func (o *ListOptions) SetPageToken(token string)    { o.PageToken = token }
func (o *ListOptions) SetNameFilters(names []string) { o.NameFilters = names }
func (o *ListOptions) SetStreamUpdates(v bool)      { o.StreamUpdates = v }
func (o *ListOptions) SetStreamCreates(v bool)      { o.StreamCreates = v }

type StreamAppsRequest struct {
	ListOptions
	LabelFilters []*LabelFilter `json:"labelFilters,omitempty"`
}

func (r *StreamAppsRequest) AddLabelFilters(f ...*LabelFilter) {
	r.LabelFilters = append(r.LabelFilters, f...)
}

type StreamReleasesRequest struct {
	ListOptions
	LabelFilters []*LabelFilter `json:"labelFilters,omitempty"`
}

func (r *StreamReleasesRequest) AddLabelFilters(f ...*LabelFilter) {
	r.LabelFilters = append(r.LabelFilters, f...)
}

type StreamScalesRequest struct {
	ListOptions
	StateFilters []ScaleRequestState `json:"stateFilters,omitempty"`
}

type StreamDeploymentsRequest struct {
	ListOptions
	TypeFilters   []ReleaseType      `json:"typeFilters,omitempty"`
	StatusFilters []DeploymentStatus `json:"statusFilters,omitempty"`
}

type UpdateAppRequest struct {
	App        *App     `json:"app"`
	UpdateMask []string `json:"updateMask,omitempty"`
}

type CreateScaleRequest struct {
	Parent    string                            `json:"parent"`
	Processes map[string]int32                  `json:"processes,omitempty"`
	Tags      map[string]*DeploymentProcessTags `json:"tags,omitempty"`
}

type CreateReleaseRequest struct {
	Parent    string   `json:"parent"`
	Release   *Release `json:"release"`
	RequestID string   `json:"requestId,omitempty"`
}

type CreateDeploymentRequest struct {
	Parent       string              `json:"parent"`
	ScaleRequest *CreateScaleRequest `json:"scaleRequest,omitempty"`
}

type StatusRequest struct{}

// StatusResponse reports controller health.
type StatusResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
	Detail  []byte `json:"detail,omitempty"`
}

// ParseIDFromName returns the id following resourceName in a resource name,
// e.g. ParseIDFromName("apps/1/releases/2", "releases") returns "2".
func ParseIDFromName(name, resourceName string) string {
	parts := strings.Split(name, "/")
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == resourceName {
			return parts[i+1]
		}
	}
	return ""
}

// AppName returns the app resource name ("apps/<id>") a resource belongs to.
func AppName(name string) string {
	if id := ParseIDFromName(name, "apps"); id != "" {
		return "apps/" + id
	}
	return ""
}
