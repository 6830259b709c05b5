package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"jjobs-core/params"
	"jjobs-core/teleop/control"
	"jjobs-core/utils"
)

// feedbackStaleAfter is how long a speed feedback frame is trusted.
const feedbackStaleAfter = 500 * time.Millisecond

type RunnerConfig struct {
	Interface    string
	MapPath      string
	ScenarioPath string // empty: drive from JOYSTICK_STATE frames
}

type Runner struct {
	cfg     RunnerConfig
	log     *utils.Logger
	params  *params.Parameter
	cmap    *utils.CANMap
	writer  utils.CANWriter
	reader  utils.CANReader // nil when nothing needs to be received
	source  IntentSource
	joy     *JoystickSource
	pid     *control.PIDController
	session string

	period      time.Duration
	idleTimeout time.Duration

	// Ramp state, owned by the loop goroutine
	linear       float64
	angular      float64
	measured     float64
	lastFeedback time.Time
}

// rxMessage is a decoded frame handed from the receive loop to Run.
type rxMessage struct {
	name   string
	values map[string]float64
	at     time.Time
}

func NewRunner(ctx context.Context, cfg RunnerConfig, p *params.Parameter, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	var source IntentSource
	var joy *JoystickSource
	if cfg.ScenarioPath != "" {
		scen, err := LoadScenario(cfg.ScenarioPath)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		log.Info("scenario %s loaded: %d segments over %.1fs", scen.Meta.Name, len(scen.Segments), scen.Timing.DurationS)
		source = NewScenarioSource(&scen)
	} else {
		joy = &JoystickSource{}
		source = joy
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}

	var reader utils.CANReader
	if joy != nil || p.Local().Global().EnableFeedback {
		reader, err = utils.NewSocketCANReader(ctx, cfg.Interface)
		if err != nil {
			writer.Close()
			return nil, err
		}
	}

	r, err := newRunner(cfg, p, cmap, writer, reader, source, log)
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func newRunner(cfg RunnerConfig, p *params.Parameter, cmap *utils.CANMap,
	writer utils.CANWriter, reader utils.CANReader, source IntentSource, log *utils.Logger,
) (*Runner, error) {
	session := xid.New().String()
	r := &Runner{
		cfg:         cfg,
		log:         log.With("session", session),
		params:      p,
		cmap:        cmap,
		writer:      writer,
		reader:      reader,
		source:      source,
		session:     session,
		period:      time.Duration(float64(time.Second) / p.Machine().ControlHz),
		idleTimeout: time.Duration(p.Local().Variables().IdleTime) * time.Second,
	}
	if joy, ok := source.(*JoystickSource); ok {
		r.joy = joy
	}

	fd, err := cmap.FrameByName(utils.FrameChassisSpeedCmd)
	if err != nil {
		return r, fmt.Errorf("frame: %w", err)
	}
	if fd.Direction != utils.DirectionTX {
		return r, fmt.Errorf("frame %s must be tx, got %s", fd.Name, fd.Direction)
	}
	if r.joy != nil {
		if _, err := cmap.FrameByName(utils.FrameJoystickState); err != nil {
			return r, fmt.Errorf("joystick input: %w", err)
		}
	}

	local := p.Local()
	if local.Global().EnableFeedback {
		if _, err := cmap.FrameByName(utils.FrameChassisSpeedFeedback); err != nil {
			return r, fmt.Errorf("speed feedback: %w", err)
		}
		r.pid = control.NewPIDController(p.Machine().Feedback, local.Variables().FeedbackToleranceVelocity)
	}
	return r, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

func (r *Runner) Session() string { return r.session }

func (r *Runner) Run(ctx context.Context) error {
	m := r.params.Machine()
	r.log.Info("Starting teleop: model=%s iface=%s rate=%.1fHz linear_max=%.2f angular_max=%.2f feedback=%v source=%T",
		m.Model, r.cfg.Interface, m.ControlHz, m.Linear.Max, m.Angular.Max, r.pid != nil, r.source)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	rxCtx, cancelRx := context.WithCancel(ctx)
	defer cancelRx()
	rxChan := make(chan rxMessage, 100)
	if r.reader != nil {
		go r.receiveLoop(rxCtx, rxChan)
	}

	var sent uint64
	var idleSince time.Time
	dt := r.period.Seconds()

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping chassis")
			r.stop()
			r.log.Info("Completed teleop. frames_sent=%d", sent)
			return ctx.Err()

		case msg := <-rxChan:
			r.handleRx(msg)

		case now := <-ticker.C:
			lin, ang, ok := r.source.Intents(now)
			if !ok {
				r.stop()
				r.log.Info("Intent source finished. frames_sent=%d", sent)
				return nil
			}

			cmd := r.tick(lin, ang, now, dt)
			if err := r.send(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.log.Critical("Transmit failed: %v", err)
				return err
			}
			sent++
			r.log.Trace("TX linear=%.3f angular=%.3f corr=%.3f intents=%s/%s",
				cmd.LinearMPS, cmd.AngularRPS, cmd.Correction, lin, ang)

			if lin == control.IntentIdle && ang == control.IntentIdle && cmd.IsZero() {
				if idleSince.IsZero() {
					idleSince = now
				} else if r.idleTimeout > 0 && now.Sub(idleSince) >= r.idleTimeout {
					r.log.Info("Idle for %s; stopping teleop. frames_sent=%d", r.idleTimeout, sent)
					r.stop()
					return nil
				}
			} else {
				idleSince = time.Time{}
			}
		}
	}
}

// tick advances both ramps by one control period and folds in the speed
// feedback correction.
func (r *Runner) tick(lin, ang control.Intent, now time.Time, dt float64) control.Command {
	vars := r.params.Local().Variables()

	linCfg := r.params.LinearRamp()
	if lin == control.IntentIdle {
		linCfg = linCfg.WithStep(control.AutoDecelStep(r.linear, linCfg,
			vars.AutomaticDecelerationThreshold, vars.AutomaticDecelerationRatio))
	}
	angCfg := r.params.AngularRamp()
	if ang == control.IntentIdle {
		angCfg = angCfg.WithStep(control.AutoDecelStep(r.angular, angCfg,
			vars.AutomaticDecelerationThreshold, vars.AutomaticDecelerationRatio))
	}

	r.linear = control.Step(r.linear, lin, linCfg)
	r.angular = control.Step(r.angular, ang, angCfg)

	out := r.linear
	if r.pid != nil {
		fresh := !r.lastFeedback.IsZero() && now.Sub(r.lastFeedback) <= feedbackStaleAfter
		if fresh && r.linear != 0 {
			corr := r.pid.Update(r.linear, r.measured, dt)
			out = control.ClampFloat(r.linear+corr, -linCfg.MaxMagnitude, linCfg.MaxMagnitude)
			d := r.pid.GetDiagnostics()
			r.log.Trace("PID err=%.3f P=%.3f I=%.3f integral=%.3f", d.Error, d.P, d.I, d.Integral)
		} else {
			if !fresh && r.linear != 0 && !r.lastFeedback.IsZero() {
				r.log.Warn("No speed feedback for %.1f ms - running open loop",
					now.Sub(r.lastFeedback).Seconds()*1000)
			}
			r.pid.Reset()
		}
	}

	return control.Command{
		LinearMPS:  out,
		AngularRPS: r.angular,
		Correction: out - r.linear,
		Enable:     true,
	}
}

func (r *Runner) handleRx(msg rxMessage) {
	switch msg.name {
	case utils.FrameChassisSpeedFeedback:
		r.measured = msg.values["linear_mps"]
		r.lastFeedback = msg.at
		r.log.Trace("RX feedback linear=%.3f", r.measured)
	case utils.FrameJoystickState:
		if r.joy != nil {
			r.joy.Update(msg.values, msg.at)
		}
	}
}

func (r *Runner) send(ctx context.Context, cmd control.Command) error {
	frame, err := r.cmap.EncodeEinrideFrame(utils.FrameChassisSpeedCmd, map[string]float64{
		"enable":      control.BoolToFloat(cmd.Enable),
		"linear_mps":  cmd.LinearMPS,
		"angular_rps": cmd.AngularRPS,
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return r.writer.WriteFrame(ctx, frame)
}

// stop commands rest with drive disabled, independent of the run context.
func (r *Runner) stop() {
	r.linear, r.angular = 0, 0
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.send(ctx, control.Command{}); err != nil {
		r.log.Error("Stop command failed: %v", err)
	}
}

// receiveLoop decodes frames and forwards the ones the loop consumes.
func (r *Runner) receiveLoop(ctx context.Context, out chan<- rxMessage) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error("RX error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.period):
			}
			continue
		}

		fd, values, err := r.cmap.DecodeEinrideFrame(frame)
		if err != nil {
			r.log.Trace("RX id=0x%X ignored: %v", frame.ID, err)
			continue
		}
		if fd.Direction != utils.DirectionRX {
			continue
		}

		select {
		case out <- rxMessage{name: fd.Name, values: values, at: time.Now()}:
		case <-ctx.Done():
			return
		default:
			// Channel full, skip
		}
	}
}
