package orchestrator

import (
	"context"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/request"
)

// SendSingle streams one answer from the selected model, publishing
// State.SingleText after every delta.
func (o *Orchestrator) SendSingle(ctx context.Context, prompt string) error {
	ctx, release, err := o.start(ctx, ModeSingle, prompt)
	if err != nil {
		return err
	}
	defer release()

	sel := o.State().SelectedModel
	b := branch{key: sel.ID, source: sel.ID, req: request.ForModel(prompt, sel, o.streamSingle)}

	r := o.runBranch(ctx, ModeSingle, b, func(text string) {
		o.update(func(s State) State {
			s.SingleText = text
			return s
		})
	})

	o.update(func(s State) State {
		s = s.withSlot(ModeSingle, b.key, r)
		if r.Failed() {
			s.Error = r.Err
		} else {
			s.SingleText = r.Text
		}
		return s.withBusy(ModeSingle, false)
	})
	return nil
}

// CompareRestrictions asks the same question without and then with the
// brevity restrictions. When the unrestricted call fails the restricted one
// is not attempted and the failure stands as the comparison result.
func (o *Orchestrator) CompareRestrictions(ctx context.Context, prompt string) error {
	ctx, release, err := o.start(ctx, ModeRestriction, prompt)
	if err != nil {
		return err
	}
	defer release()

	p := plan{mode: ModeRestriction, strategy: Sequential, publishEach: true, stopOnError: true}
	o.runPlan(ctx, p, []branch{
		{
			key:    SlotUnrestricted,
			source: o.restrictionModel,
			req:    request.ForRestriction(prompt, o.restrictionModel, false, request.DefaultTemperature),
		},
		{
			key:    SlotRestricted,
			source: o.restrictionModel,
			req:    request.ForRestriction(prompt, o.restrictionModel, true, request.DefaultTemperature),
		},
	})

	o.update(func(s State) State { return s.withBusy(ModeRestriction, false) })
	return nil
}

// CompareModels asks every catalog model at once, on its default
// parameters, and publishes the results only after all have settled.
func (o *Orchestrator) CompareModels(ctx context.Context, prompt string) error {
	ctx, release, err := o.start(ctx, ModeModels, prompt)
	if err != nil {
		return err
	}
	defer release()

	var branches []branch
	for _, opt := range o.catalog.All() {
		branches = append(branches, branch{
			key:    opt.ID,
			source: opt.ID,
			req:    request.ForModel(prompt, opt, false),
		})
	}

	results := o.runPlan(ctx, plan{mode: ModeModels, strategy: Concurrent}, branches)

	o.update(func(s State) State {
		return s.withSlots(ModeModels, results).withBusy(ModeModels, false)
	})
	return nil
}

// SweepTemperatures asks the selected model the same question at each
// sweep temperature, one after another. Each result is published as it
// settles; a failure at one temperature does not affect the others.
func (o *Orchestrator) SweepTemperatures(ctx context.Context, prompt string) error {
	ctx, release, err := o.start(ctx, ModeSweep, prompt)
	if err != nil {
		return err
	}
	defer release()

	sel := o.State().SelectedModel
	branches := make([]branch, 0, len(o.temperatures))
	for _, t := range o.temperatures {
		branches = append(branches, branch{
			key:    TemperatureKey(t),
			source: sel.ID + "@" + TemperatureKey(t),
			req:    request.ForTemperature(prompt, sel, t, true),
		})
	}

	o.runPlan(ctx, plan{mode: ModeSweep, strategy: Sequential, publishEach: true}, branches)

	o.update(func(s State) State { return s.withBusy(ModeSweep, false) })
	return nil
}

func partial(source, text string) executor.Result {
	return executor.Result{Source: source, Text: text, Partial: true}
}
