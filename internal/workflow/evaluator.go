// Package workflow evaluates configured notification rules against task
// events. Given a trigger and a task snapshot it produces the resolved
// recipient sets, the selected template, and any field actions attached
// to matching rules.
package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/soporteware/helpdesk/internal/model"
)

// RuleSource provides active rule configuration lookups.
type RuleSource interface {
	GetActiveWorkflows(ctx context.Context, trigger model.Trigger) ([]model.Workflow, error)
}

// Outcome is the result of evaluating one trigger against a task. To and
// Cc are sorted, deduplicated, and disjoint: an address in To never
// repeats in Cc.
type Outcome struct {
	To         []string
	Cc         []string
	TemplateID *string
	Subject    string
	Actions    []model.WorkflowAction

	// Matched lists the ids of the rules that matched, for logging.
	Matched []string
}

// Evaluator matches rules in priority order and resolves recipients.
// Evaluation is deterministic: the same task snapshot, trigger, and rule
// configuration always produce the same outcome.
type Evaluator struct {
	rules   RuleSource
	dir     Directory
	lookups Lookups
}

// NewEvaluator creates an Evaluator over the given configuration and
// directory sources.
func NewEvaluator(rules RuleSource, dir Directory, lookups Lookups) *Evaluator {
	return &Evaluator{rules: rules, dir: dir, lookups: lookups}
}

// Evaluate runs all active rules for the trigger against the task.
// change carries the old/new pair for CAMBIO_* triggers. fromWorkflow
// marks evaluation caused by a rule action; field actions are suppressed
// on such calls so action chains stop at depth one.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	trigger model.Trigger,
	task *model.Task,
	change *ChangeContext,
	fromWorkflow bool,
) (*Outcome, error) {
	rules, err := e.rules.GetActiveWorkflows(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("loading rules for trigger %s: %w", trigger, err)
	}

	snap, err := BuildSnapshot(ctx, e.lookups, task, change)
	if err != nil {
		return nil, fmt.Errorf("building task snapshot: %w", err)
	}

	outcome := &Outcome{}
	toSet := make(map[string]struct{})
	ccSet := make(map[string]struct{})

	for _, rule := range rules {
		if !groupConditions(rule.Conditions).match(snap) {
			continue
		}
		outcome.Matched = append(outcome.Matched, rule.ID)

		for _, r := range rule.Recipients {
			target := toSet
			if r.CC {
				target = ccSet
			}
			for _, email := range resolveRecipient(ctx, r, task, e.dir) {
				if email != "" {
					target[email] = struct{}{}
				}
			}
		}

		if rule.CopyLead1 {
			addAll(ccSet, resolveProjectLead(1)(ctx, "", task, e.dir))
		}
		if rule.CopyLead2 {
			addAll(ccSet, resolveProjectLead(2)(ctx, "", task, e.dir))
		}

		// First match wins for message selection.
		if outcome.TemplateID == nil && rule.TemplateID != nil {
			outcome.TemplateID = rule.TemplateID
		}
		if outcome.Subject == "" && rule.Subject != "" {
			outcome.Subject = rule.Subject
		}

		if !fromWorkflow {
			outcome.Actions = append(outcome.Actions, rule.Actions...)
		}

		if rule.StopOnMatch {
			break
		}
	}

	// To takes precedence over Cc.
	for email := range toSet {
		delete(ccSet, email)
	}

	outcome.To = sortedKeys(toSet)
	outcome.Cc = sortedKeys(ccSet)

	return outcome, nil
}

func addAll(set map[string]struct{}, emails []string) {
	for _, email := range emails {
		if email != "" {
			set[email] = struct{}{}
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
