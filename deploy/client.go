package deploy

import (
	"context"

	"cloud.google.com/go/iam/apiv1/iampb"
	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
)

// servicesAPI is the part of the Cloud Run Admin API the Deployer needs,
// with long-running operations already awaited.
type servicesAPI interface {
	get(ctx context.Context, name string) (*runpb.Service, error)
	create(ctx context.Context, parent, id string, svc *runpb.Service) (*runpb.Service, error)
	update(ctx context.Context, svc *runpb.Service) (*runpb.Service, error)
	getIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest) (*iampb.Policy, error)
	setIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest) (*iampb.Policy, error)
}

type runServices struct {
	client *run.ServicesClient
}

func (r *runServices) get(ctx context.Context, name string) (*runpb.Service, error) {
	return r.client.GetService(ctx, &runpb.GetServiceRequest{Name: name})
}

func (r *runServices) create(ctx context.Context, parent, id string, svc *runpb.Service) (*runpb.Service, error) {
	op, err := r.client.CreateService(ctx, &runpb.CreateServiceRequest{Parent: parent, ServiceId: id, Service: svc})
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (r *runServices) update(ctx context.Context, svc *runpb.Service) (*runpb.Service, error) {
	op, err := r.client.UpdateService(ctx, &runpb.UpdateServiceRequest{Service: svc})
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (r *runServices) getIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest) (*iampb.Policy, error) {
	return r.client.GetIamPolicy(ctx, req)
}

func (r *runServices) setIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest) (*iampb.Policy, error) {
	return r.client.SetIamPolicy(ctx, req)
}
