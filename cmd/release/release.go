package release

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/modifier"
	"controller-dashboard/internal/ui"
	"controller-dashboard/pkg/env"
	"controller-dashboard/pkg/template"
)

// Command is the parent command for release subcommands
type Command struct{}

func (c *Command) Register(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release operations",
	}

	create := &CreateCommand{}
	create.Register(cmd)

	envCmd := &EnvCommand{}
	envCmd.Register(cmd)

	parent.AddCommand(cmd)
}

type CreateCommand struct {
	Artifacts []string
	Env       []string
	EnvFile   string
	Expand    bool
	Labels    []string
	Processes []string
	Config    bool
}

func (c *CreateCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "create APP",
		Short: "Create a release",
		Long: `Create a release for an app. The release is not deployed.

Example:
  dashboard release create apps/3f2a --artifact artifacts/77ab --env PORT=8080 --process web="bin/web -p 8080"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0])
		},
	}

	command.Flags().StringSliceVar(&c.Artifacts, "artifact", nil, "Artifact names")
	command.Flags().StringSliceVar(&c.Env, "env", nil, "Environment variables as KEY=VALUE")
	command.Flags().StringVar(&c.EnvFile, "env-file", "", "Read environment variables from a .env file; --env overrides it")
	command.Flags().BoolVar(&c.Expand, "expand", false, "Expand ${VAR} references in environment values")
	command.Flags().StringSliceVar(&c.Labels, "label", nil, "Labels as key=value")
	command.Flags().StringArrayVar(&c.Processes, "process", nil, "Process types as type=command")
	command.Flags().BoolVar(&c.Config, "config", false, "Mark the release as a configuration change only")

	parent.AddCommand(command)
}

func (c *CreateCommand) release() (*api.Release, error) {
	vars := map[string]string{}
	if c.EnvFile != "" {
		fromFile, err := env.Load(c.EnvFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(vars, fromFile)
	}
	flagVars, err := common.ParsePairs(c.Env)
	if err != nil {
		return nil, err
	}
	maps.Copy(vars, flagVars)
	if c.Expand {
		if vars, err = template.Expand(vars); err != nil {
			return nil, err
		}
	}
	if len(vars) == 0 {
		vars = nil
	}
	labels, err := common.ParsePairs(c.Labels)
	if err != nil {
		return nil, err
	}
	commands, err := common.ParsePairs(c.Processes)
	if err != nil {
		return nil, err
	}

	r := &api.Release{
		Artifacts: c.Artifacts,
		Env:       vars,
		Labels:    labels,
		Type:      api.ReleaseTypeCode,
	}
	if c.Config {
		r.Type = api.ReleaseTypeConfig
	}
	if len(commands) > 0 {
		r.Processes = make(map[string]*api.ProcessType, len(commands))
		for name, command := range commands {
			r.Processes[name] = &api.ProcessType{Args: strings.Fields(command)}
		}
	}
	return r, nil
}

func (c *CreateCommand) Run(ctx context.Context, app string) error {
	r, err := c.release()
	if err != nil {
		return err
	}

	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	type result struct {
		release *api.Release
		err     error
	}
	return s.Run(ctx, func(ctx context.Context) error {
		done := make(chan result, 1)
		s.Dashboard.CreateRelease(app, r, func(r *api.Release, err error) { done <- result{r, err} })

		res, err := common.Wait(ctx, done)
		if err != nil {
			return err
		}
		if res.err != nil {
			return res.err
		}
		return common.Print(res.release, func() {
			ui.Successf("Created %s", res.release.Name)
		})
	})
}

// EnvCommand prints or saves the environment of a release.
type EnvCommand struct {
	Save string
}

func (c *EnvCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "env RELEASE",
		Short: "Show the environment of a release",
		Long: `Show the environment of a release in .env format.

Example:
  dashboard release env apps/3f2a/releases/9c1e
  dashboard release env apps/3f2a/releases/9c1e --save .env`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0])
		},
	}

	command.Flags().StringVar(&c.Save, "save", "", "Write the environment to this file instead of printing it")

	parent.AddCommand(command)
}

func (c *EnvCommand) Run(ctx context.Context, name string) error {
	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	type result struct {
		release *api.Release
		err     error
	}
	return s.Run(ctx, func(ctx context.Context) error {
		done := make(chan result, 1)
		cancel := s.Dashboard.StreamReleases(func(res *api.StreamReleasesResponse, err error) {
			switch {
			case err != nil:
				common.Offer(done, result{err: err})
			case len(res.Items) > 0:
				common.Offer(done, result{release: res.Items[0]})
			case res.PageComplete:
				common.Offer(done, result{err: fmt.Errorf("release %s not found", name)})
			}
		}, modifier.SetNameFilters[*api.StreamReleasesRequest](name))
		defer cancel()

		res, err := common.Wait(ctx, done)
		if err != nil {
			return err
		}
		if res.err != nil {
			return res.err
		}

		if c.Save != "" {
			if err := env.Save(c.Save, res.release.Env); err != nil {
				return err
			}
			ui.Successf("Saved %d variables to %s", len(res.release.Env), c.Save)
			return nil
		}
		return env.Write(ui.Out, res.release.Env)
	})
}
