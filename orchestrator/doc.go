// Package orchestrator implements the hosting agent that delegates user
// requests to remote A2A agents.
//
// An Orchestrator resolves the agent cards of its remote agents, exposes
// them to the model through the list_remote_agents and send_message tools,
// and tracks the active remote conversation in session state:
//
//	o := orchestrator.New(func(o *orchestrator.Options) { o.HTTPClient = client })
//	if err := o.Load(ctx, []string{cocktailURL, weatherURL}); err != nil {
//		return err
//	}
//	host := o.NewAgent(llm)
package orchestrator
