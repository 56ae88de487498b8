package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/a2amesh/deploy"
)

func newDeployCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy agents and MCP servers to Cloud Run",
	}

	var (
		spec deploy.ServiceSpec
		env  []string
	)

	service := &cobra.Command{
		Use:   "service <name>",
		Short: "Create or update a Cloud Run service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := spec
			s.Name = args[0]
			if s.Project == "" {
				s.Project = a.cfg.Google.ProjectID
			}
			if s.Region == "" {
				s.Region = a.cfg.Google.Location
			}

			vars, err := parseEnv(env)
			if err != nil {
				return err
			}
			s.Env = vars

			d, err := deploy.New(cmd.Context(), func(o *deploy.Options) { o.Logger = a.logger })
			if err != nil {
				return err
			}
			defer d.Close()

			uri, err := d.Deploy(cmd.Context(), s)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(a.out, uri)
			return err
		},
	}

	service.Flags().StringVar(&spec.Image, "image", "", "container image")
	service.Flags().StringVar(&spec.Project, "project", "", "project id (default PROJECT_ID)")
	service.Flags().StringVar(&spec.Region, "region", "", "region (default GOOGLE_CLOUD_LOCATION)")
	service.Flags().StringVar(&spec.Memory, "memory", "1Gi", "memory limit")
	service.Flags().Int32Var(&spec.Port, "port", 8080, "container port")
	service.Flags().StringVar(&spec.ServiceAccount, "service-account", "", "runtime service account")
	service.Flags().BoolVar(&spec.AllowUnauthenticated, "allow-unauthenticated", false, "grant roles/run.invoker to allUsers")
	service.Flags().StringArrayVar(&env, "env", nil, "environment variable KEY=VALUE, repeatable")
	_ = service.MarkFlagRequired("image")

	var (
		project, region string
		members         []string
	)

	grant := &cobra.Command{
		Use:   "grant-invoker <service>",
		Short: "Allow members to invoke a Cloud Run service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				project = a.cfg.Google.ProjectID
			}
			if region == "" {
				region = a.cfg.Google.Location
			}

			s := deploy.ServiceSpec{Name: args[0], Project: project, Region: region}

			d, err := deploy.New(cmd.Context(), func(o *deploy.Options) { o.Logger = a.logger })
			if err != nil {
				return err
			}
			defer d.Close()

			return d.GrantInvoker(cmd.Context(), s.ResourceName(), members...)
		},
	}

	grant.Flags().StringVar(&project, "project", "", "project id (default PROJECT_ID)")
	grant.Flags().StringVar(&region, "region", "", "region (default GOOGLE_CLOUD_LOCATION)")
	grant.Flags().StringArrayVar(&members, "member", nil, "IAM member, e.g. serviceAccount:host@p.iam.gserviceaccount.com")
	_ = grant.MarkFlagRequired("member")

	cmd.AddCommand(service, grant)

	return cmd
}

func parseEnv(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env %q, want KEY=VALUE", p)
		}
		out[k] = v
	}

	return out, nil
}
