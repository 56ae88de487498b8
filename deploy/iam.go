package deploy

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/iam/apiv1/iampb"
)

// GrantInvoker adds members to the run.invoker binding of the service with
// the full resource name. Members already bound are left untouched and no
// write happens when nothing changed.
func (d *Deployer) GrantInvoker(ctx context.Context, service string, members ...string) error {
	policy, err := d.api.getIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: service})
	if err != nil {
		return fmt.Errorf("get iam policy of %s: %w", service, err)
	}

	if !AddBinding(policy, InvokerRole, members...) {
		d.opts.Logger.Debug("deploy.iam.unchanged", "service", service)
		return nil
	}

	if _, err := d.api.setIamPolicy(ctx, &iampb.SetIamPolicyRequest{Resource: service, Policy: policy}); err != nil {
		return fmt.Errorf("set iam policy of %s: %w", service, err)
	}

	d.opts.Logger.Info("deploy.iam.granted", "service", service, "role", InvokerRole, "members", members)

	return nil
}

// AddBinding adds members to role in policy and reports whether the policy
// changed.
func AddBinding(policy *iampb.Policy, role string, members ...string) bool {
	var binding *iampb.Binding
	for _, b := range policy.Bindings {
		if b.Role == role && b.Condition == nil {
			binding = b
			break
		}
	}

	if binding == nil {
		binding = &iampb.Binding{Role: role}
		policy.Bindings = append(policy.Bindings, binding)
	}

	changed := false
	for _, m := range members {
		if !slices.Contains(binding.Members, m) {
			binding.Members = append(binding.Members, m)
			changed = true
		}
	}

	if !changed && len(binding.Members) == 0 {
		policy.Bindings = slices.DeleteFunc(policy.Bindings, func(b *iampb.Binding) bool { return b == binding })
	}

	return changed
}
