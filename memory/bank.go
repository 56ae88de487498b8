package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
)

// BankOptions configures a Bank.
type BankOptions struct {
	// Generator extracts facts; nil stores raw conversation turns.
	Generator Generator
	// Topics restricts generated facts. Defaults to ManagedTopics.
	Topics []Topic
	Logger logging.Logger
}

// Bank turns sessions into memories stored in a core.MemoryStore.
type Bank struct {
	store core.MemoryStore
	opts  BankOptions
}

// NewBank creates a Bank writing into store.
func NewBank(store core.MemoryStore, optFns ...func(o *BankOptions)) *Bank {
	opts := BankOptions{Topics: ManagedTopics(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bank{store: store, opts: opts}
}

// AddSessionToMemory extracts memories from sess and stores them in the
// user's scope. Memories already present with identical content are skipped.
func (b *Bank) AddSessionToMemory(ctx context.Context, sess *core.Session) error {
	if sess == nil {
		return nil
	}

	scope := sess.UserID

	candidates, err := b.candidates(ctx, sess)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		return nil
	}

	existing, err := b.store.List(ctx, scope)
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.Content] = struct{}{}
	}

	stored := 0
	for _, c := range candidates {
		if _, dup := seen[c.Content]; dup {
			continue
		}
		seen[c.Content] = struct{}{}

		c.Scope = scope
		c.Metadata = map[string]any{"session_id": sess.ID, "app_name": sess.AppName}

		if _, err := b.store.Store(ctx, c); err != nil {
			return fmt.Errorf("store memory: %w", err)
		}
		stored++
	}

	b.opts.Logger.Info("memory.session.saved", "session_id", sess.ID, "user_id", scope, "stored", stored)

	return nil
}

func (b *Bank) candidates(ctx context.Context, sess *core.Session) ([]core.Memory, error) {
	history := sess.GetConversationHistory()

	if b.opts.Generator == nil {
		out := make([]core.Memory, 0, len(history))
		for _, ev := range history {
			if ev.Content.Role == core.RoleTool {
				continue
			}
			if text := strings.TrimSpace(ev.Text()); text != "" {
				out = append(out, core.Memory{Content: fmt.Sprintf("%s: %s", ev.Content.Role, text), CreatedAt: ev.Timestamp})
			}
		}
		return out, nil
	}

	facts, err := b.opts.Generator.Generate(ctx, transcript(history), b.opts.Topics)
	if err != nil {
		return nil, err
	}

	out := make([]core.Memory, 0, len(facts))
	for _, f := range facts {
		out = append(out, core.Memory{Content: f.Fact, Topic: f.Topic})
	}

	return out, nil
}

func transcript(history []core.Event) string {
	var sb strings.Builder
	for _, ev := range history {
		if ev.Content.Role == core.RoleTool {
			continue
		}
		if text := strings.TrimSpace(ev.Text()); text != "" {
			fmt.Fprintf(&sb, "%s: %s\n", ev.Content.Role, text)
		}
	}
	return sb.String()
}
