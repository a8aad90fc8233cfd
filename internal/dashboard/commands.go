package dashboard

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"controller-dashboard/internal/api"
	"controller-dashboard/pkg/cqrs"
	"controller-dashboard/pkg/log"
)

// UpdateAppCommand updates the fields of App named by UpdateMask.
type UpdateAppCommand struct {
	App        *api.App
	UpdateMask []string

	// Result is set by the handler.
	Result *api.App
}

func (*UpdateAppCommand) CommandName() string { return "UpdateApp" }

// CreateScaleCommand requests new process counts for a release.
type CreateScaleCommand struct {
	Request *api.CreateScaleRequest

	Result *api.ScaleRequest
}

func (*CreateScaleCommand) CommandName() string { return "CreateScale" }

// CreateReleaseCommand creates a release under Parent. RequestID makes the
// call idempotent and is generated when empty.
type CreateReleaseCommand struct {
	Parent    string
	Release   *api.Release
	RequestID string

	Result *api.Release
}

func (*CreateReleaseCommand) CommandName() string { return "CreateRelease" }

// CreateDeploymentCommand deploys a release and reports its events to
// OnEvent until the deployment finishes.
type CreateDeploymentCommand struct {
	Request *api.CreateDeploymentRequest
	OnEvent func(*api.DeploymentEvent)
}

func (*CreateDeploymentCommand) CommandName() string { return "CreateDeployment" }

// RegisterCommandHandlers registers the write handlers of ctrl with b.
func RegisterCommandHandlers(b *cqrs.CommandBus, ctrl api.Controller) error {
	if err := cqrs.Register[*UpdateAppCommand](b, NewUpdateAppHandler(ctrl)); err != nil {
		return log.Errorf("failed to register update app handler: %v", err)
	}

	if err := cqrs.Register[*CreateScaleCommand](b, NewCreateScaleHandler(ctrl)); err != nil {
		return log.Errorf("failed to register create scale handler: %v", err)
	}

	if err := cqrs.Register[*CreateReleaseCommand](b, NewCreateReleaseHandler(ctrl)); err != nil {
		return log.Errorf("failed to register create release handler: %v", err)
	}

	if err := cqrs.Register[*CreateDeploymentCommand](b, NewCreateDeploymentHandler(ctrl)); err != nil {
		return log.Errorf("failed to register create deployment handler: %v", err)
	}

	return nil
}

// UpdateAppHandler handles the UpdateAppCommand
type UpdateAppHandler struct {
	ctrl api.Controller
}

func NewUpdateAppHandler(ctrl api.Controller) *UpdateAppHandler {
	return &UpdateAppHandler{ctrl: ctrl}
}

// Handle executes the UpdateAppCommand
func (h *UpdateAppHandler) Handle(ctx context.Context, cmd *UpdateAppCommand) error {
	if cmd.App == nil || cmd.App.Name == "" {
		return &api.Error{Code: codes.InvalidArgument, Message: "app name is required"}
	}
	log.Debug("Updating app", "app", cmd.App.Name, "mask", cmd.UpdateMask)

	app, err := h.ctrl.UpdateApp(ctx, &api.UpdateAppRequest{App: cmd.App, UpdateMask: cmd.UpdateMask})
	if err != nil {
		return api.FromError(err)
	}
	cmd.Result = app
	return nil
}

// CreateScaleHandler handles the CreateScaleCommand
type CreateScaleHandler struct {
	ctrl api.Controller
}

func NewCreateScaleHandler(ctrl api.Controller) *CreateScaleHandler {
	return &CreateScaleHandler{ctrl: ctrl}
}

// Handle executes the CreateScaleCommand
func (h *CreateScaleHandler) Handle(ctx context.Context, cmd *CreateScaleCommand) error {
	if cmd.Request == nil || cmd.Request.Parent == "" {
		return &api.Error{Code: codes.InvalidArgument, Message: "release name is required"}
	}
	log.Debug("Creating scale request", "release", cmd.Request.Parent, "processes", cmd.Request.Processes)

	sr, err := h.ctrl.CreateScale(ctx, cmd.Request)
	if err != nil {
		return api.FromError(err)
	}
	cmd.Result = sr
	return nil
}

// CreateReleaseHandler handles the CreateReleaseCommand
type CreateReleaseHandler struct {
	ctrl api.Controller
}

func NewCreateReleaseHandler(ctrl api.Controller) *CreateReleaseHandler {
	return &CreateReleaseHandler{ctrl: ctrl}
}

// Handle executes the CreateReleaseCommand
func (h *CreateReleaseHandler) Handle(ctx context.Context, cmd *CreateReleaseCommand) error {
	if cmd.Parent == "" {
		return &api.Error{Code: codes.InvalidArgument, Message: "app name is required"}
	}
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}
	log.Debug("Creating release", "app", cmd.Parent, "request_id", cmd.RequestID)

	release, err := h.ctrl.CreateRelease(ctx, &api.CreateReleaseRequest{
		Parent:    cmd.Parent,
		Release:   cmd.Release,
		RequestID: cmd.RequestID,
	})
	if err != nil {
		return api.FromError(err)
	}
	cmd.Result = release
	return nil
}

// CreateDeploymentHandler handles the CreateDeploymentCommand
type CreateDeploymentHandler struct {
	ctrl api.Controller
}

func NewCreateDeploymentHandler(ctrl api.Controller) *CreateDeploymentHandler {
	return &CreateDeploymentHandler{ctrl: ctrl}
}

// Handle executes the CreateDeploymentCommand. It returns once the event
// stream ends.
func (h *CreateDeploymentHandler) Handle(ctx context.Context, cmd *CreateDeploymentCommand) error {
	if cmd.Request == nil || cmd.Request.Parent == "" {
		return &api.Error{Code: codes.InvalidArgument, Message: "release name is required"}
	}
	log.Debug("Creating deployment", "release", cmd.Request.Parent)

	recv, err := h.ctrl.CreateDeployment(ctx, cmd.Request)
	if err != nil {
		return api.FromError(err)
	}
	for {
		ev, err := recv.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return api.FromError(err)
		}
		if cmd.OnEvent != nil {
			cmd.OnEvent(ev)
		}
	}
}
