package main

import (
	"context"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/engine"
	"github.com/c360/simucore/signal"
)

// Tank geometry for the demo plant.
const (
	tankCapacity = 100.0
	drainRate    = 0.5
)

// demoPlant is a pump filling a tank. The pump runs while the operator switch
// is on and the tank is below its high mark, and the tank drains at a fixed rate.
type demoPlant struct {
	// pump
	flowSetpoint *signal.Signal[float64]
	running      *signal.Signal[bool]
	flowOut      *signal.Signal[float64]

	// tank
	flowIn    *signal.Signal[float64]
	level     *signal.Signal[float64]
	highMark  *signal.Signal[float64]
	full      *signal.Signal[bool]
	levelGate *signal.Signal[bool]

	// panel
	operator  *signal.Signal[bool]
	indicator *signal.Signal[string]
}

func (p *demoPlant) bind(app *engine.Application) error {
	tree, reg, root := app.Tree(), app.Registry(), app.Root()

	panel, err := tree.Attach(root, "panel", component.KindComponent, nil)
	if err != nil {
		return err
	}
	if p.operator, err = signal.NewPhysicalInput(tree, reg, panel, "pump_switch", true); err != nil {
		return err
	}
	if p.indicator, err = signal.NewPhysicalOutput(tree, reg, panel, "status", "stopped"); err != nil {
		return err
	}

	pump, err := tree.Attach(root, "pump", component.KindComponent, component.ExecuteFunc(p.executePump))
	if err != nil {
		return err
	}
	if p.flowSetpoint, err = signal.NewParameter(tree, reg, pump, "flow_setpoint", 2.0); err != nil {
		return err
	}
	if p.running, err = signal.NewOutput(tree, reg, pump, "running", false); err != nil {
		return err
	}
	if p.flowOut, err = signal.NewOutput(tree, reg, pump, "flow", 0.0); err != nil {
		return err
	}
	if p.levelGate, err = signal.NewInput(tree, reg, pump, "tank_full", false); err != nil {
		return err
	}

	tank, err := tree.Attach(root, "tank", component.KindComponent, component.ExecuteFunc(p.executeTank))
	if err != nil {
		return err
	}
	if p.flowIn, err = signal.NewInput(tree, reg, tank, "inflow", 0.0); err != nil {
		return err
	}
	if p.level, err = signal.NewOutput(tree, reg, tank, "level", 0.0); err != nil {
		return err
	}
	if p.highMark, err = signal.NewParameter(tree, reg, tank, "high_mark", 80.0); err != nil {
		return err
	}
	if p.full, err = signal.NewOutput(tree, reg, tank, "full", false); err != nil {
		return err
	}

	if err := p.flowOut.ConnectTo(p.flowIn); err != nil {
		return err
	}
	return p.full.ConnectTo(p.levelGate)
}

func (p *demoPlant) executePump(context.Context) error {
	on := p.operator.Value() && !p.levelGate.Value()
	p.running.SetValue(on)
	if on {
		p.flowOut.SetValue(p.flowSetpoint.Value())
		p.indicator.SetValue("running")
	} else {
		p.flowOut.SetValue(0)
		p.indicator.SetValue("stopped")
	}
	return nil
}

func (p *demoPlant) executeTank(context.Context) error {
	level := p.level.Value() + p.flowIn.Value() - drainRate
	level = min(max(level, 0), tankCapacity)
	p.level.SetValue(level)
	p.full.SetValue(level >= p.highMark.Value())
	return nil
}
