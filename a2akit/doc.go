// Package a2akit wires github.com/a2aproject/a2a-go into the mesh.
//
// # Server side
//
// An a2asrv.AgentExecutor publishes task events to an eventqueue.Queue,
// usually through a TaskUpdater:
//
//	func (e *echo) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
//		u := a2akit.NewTaskUpdater(q, reqCtx)
//		if reqCtx.StoredTask == nil {
//			u.Submit(ctx, reqCtx.Message)
//		}
//		u.StartWork(ctx, nil)
//		u.AddArtifact(ctx, "answer", a2a.TextPart{Text: "hi"})
//		return u.Complete(ctx, nil)
//	}
//
// NewServer serves the agent card on the well-known paths and the A2A
// JSON-RPC methods on "/". Tasks live in memory unless a TaskStore such as
// SQLiteTaskStore is configured.
//
// # Client side
//
// CardResolver fetches an AgentCard, NewClient connects an a2aclient.Client
// to the URL the card advertises and ResultAggregator folds a message/stream
// response into the current Task.
package a2akit
