// Package memory provides long-term memory for agents.
//
// InMemoryStore implements core.MemoryStore with per-user scoping and a
// keyword-overlap relevance score. Bank sits on top of any MemoryStore and
// turns finished sessions into memories, either verbatim (one memory per
// user/assistant text turn) or through a Generator that extracts facts for a
// configured set of topics.
//
// Bank.AddSessionToMemory has the signature of a runner AfterRun hook, so a
// bank is wired with:
//
//	r := runner.New(app, agent, func(o *runner.Options) {
//		o.MemoryStore = store
//		o.AfterRun = append(o.AfterRun, bank.AddSessionToMemory)
//	})
package memory
