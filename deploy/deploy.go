// Package deploy creates or updates the Cloud Run services of the agents
// and MCP servers and manages who may invoke them.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hupe1980/a2amesh/logging"
)

// InvokerRole is the Cloud Run role allowing calls to a service.
const InvokerRole = "roles/run.invoker"

// AllUsers is the IAM member for unauthenticated access.
const AllUsers = "allUsers"

// ErrInvalidSpec is returned for incomplete service specs.
var ErrInvalidSpec = errors.New("invalid service spec")

// ServiceSpec describes a Cloud Run service.
type ServiceSpec struct {
	Name    string
	Project string
	Region  string
	Image   string
	// Memory defaults to 1Gi.
	Memory               string
	AllowUnauthenticated bool
	Env                  map[string]string
	// Port defaults to 8080.
	Port           int32
	ServiceAccount string
}

// Validate applies defaults and checks required fields.
func (s *ServiceSpec) Validate() error {
	if s.Memory == "" {
		s.Memory = "1Gi"
	}
	if s.Port == 0 {
		s.Port = 8080
	}

	for k, v := range map[string]string{"name": s.Name, "project": s.Project, "region": s.Region, "image": s.Image} {
		if v == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidSpec, k)
		}
	}

	return nil
}

// Parent returns the location resource of the service.
func (s *ServiceSpec) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", s.Project, s.Region)
}

// ResourceName returns the full service resource name.
func (s *ServiceSpec) ResourceName() string {
	return s.Parent() + "/services/" + s.Name
}

// Options configures a Deployer.
type Options struct {
	ClientOptions []option.ClientOption
	Logger        logging.Logger
}

// Deployer deploys services through the Cloud Run Admin API.
type Deployer struct {
	api    servicesAPI
	closer func() error
	opts   Options
}

// New creates a Deployer with its own Cloud Run client.
func New(ctx context.Context, optFns ...func(o *Options)) (*Deployer, error) {
	opts := defaultOptions(optFns)

	client, err := run.NewServicesClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create cloud run client: %w", err)
	}

	return &Deployer{api: &runServices{client: client}, closer: client.Close, opts: opts}, nil
}

// NewFromClient creates a Deployer on an existing client. The caller keeps
// ownership of client.
func NewFromClient(client *run.ServicesClient, optFns ...func(o *Options)) *Deployer {
	return &Deployer{api: &runServices{client: client}, opts: defaultOptions(optFns)}
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Close releases the client created by New.
func (d *Deployer) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// Deploy creates the service or updates it when it exists and returns the
// service URI.
func (d *Deployer) Deploy(ctx context.Context, spec ServiceSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	svc := BuildService(spec)

	_, err := d.api.get(ctx, spec.ResourceName())

	var deployed *runpb.Service

	switch {
	case isNotFound(err):
		d.opts.Logger.Info("deploy.service.create", "service", spec.Name, "region", spec.Region, "image", spec.Image)
		deployed, err = d.api.create(ctx, spec.Parent(), spec.Name, svc)
	case err != nil:
		return "", fmt.Errorf("get service %s: %w", spec.Name, err)
	default:
		d.opts.Logger.Info("deploy.service.update", "service", spec.Name, "region", spec.Region, "image", spec.Image)
		svc.Name = spec.ResourceName()
		deployed, err = d.api.update(ctx, svc)
	}

	if err != nil {
		return "", fmt.Errorf("deploy service %s: %w", spec.Name, err)
	}

	if spec.AllowUnauthenticated {
		if err := d.GrantInvoker(ctx, spec.ResourceName(), AllUsers); err != nil {
			return "", err
		}
	}

	d.opts.Logger.Info("deploy.service.ready", "service", spec.Name, "uri", deployed.GetUri())

	return deployed.GetUri(), nil
}

// BuildService converts spec into the Cloud Run service definition.
func BuildService(spec ServiceSpec) *runpb.Service {
	env := make([]*runpb.EnvVar, 0, len(spec.Env)+1)
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		env = append(env, &runpb.EnvVar{Name: k, Values: &runpb.EnvVar_Value{Value: spec.Env[k]}})
	}

	return &runpb.Service{
		Ingress: runpb.IngressTraffic_INGRESS_TRAFFIC_ALL,
		Template: &runpb.RevisionTemplate{
			ServiceAccount: spec.ServiceAccount,
			Containers: []*runpb.Container{{
				Image: spec.Image,
				Env:   env,
				Ports: []*runpb.ContainerPort{{ContainerPort: spec.Port}},
				Resources: &runpb.ResourceRequirements{
					Limits: map[string]string{"memory": spec.Memory},
				},
			}},
		},
		Labels: map[string]string{"managed-by": "a2amesh"},
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	if status.Code(err) == codes.NotFound {
		return true
	}

	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 404
}
