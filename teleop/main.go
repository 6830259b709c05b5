package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"gopkg.in/yaml.v3"

	"jjobs-core/bagfile"
	"jjobs-core/params"
	"jjobs-core/utils"
)

type globalFlags struct {
	paramDir string
	model    string
	logLevel string
	logFile  string
	envFile  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "teleop",
		Short: "Parameter tools and joystick/scenario teleoperation for the chassis.",
		Long: `teleop loads the site-local and machine-type parameters of a vehicle ` +
			`and drives the chassis over SocketCAN with ramped speed commands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return params.LoadEnvFile(g.envFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.paramDir, "params", "", "Parameter directory (default $"+params.EnvParamDir+" or "+params.DefaultDir+")")
	pf.StringVar(&g.model, "model", params.DefaultModel, "Machine type; loads <params>/<model>.yaml")
	pf.StringVar(&g.logLevel, "log", "", "trace|debug|info|warn|error|critical (default from local.yaml)")
	pf.StringVar(&g.logFile, "log-file", "teleop.log", "Log file, mirrored to stdout")
	pf.StringVar(&g.envFile, "env", ".env", "Optional KEY=VALUE file merged into the environment")

	root.AddCommand(newRunCmd(g), newParamsCmd(g), newVersionCmd(), newBagsCmd(g))
	return root
}

// setup opens the log and loads parameters. Records are mirrored to stdout
// when alsoStdout is set; the log level follows the
// local parameters unless --log is given.
func setup(g *globalFlags, alsoStdout bool) (*utils.Logger, *params.Parameter, error) {
	level := utils.INFO
	if g.logLevel != "" {
		level = utils.ParseLevel(g.logLevel)
	}
	log, err := utils.NewFileLogger(g.logFile, level, alsoStdout)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %s: %w", g.logFile, err)
	}
	atexit.Register(func() { _ = log.Close() })

	p, err := params.Load(params.ResolveDir(g.paramDir), g.model, log)
	if err != nil {
		log.Critical("Loading parameters failed: %v", err)
		return nil, nil, err
	}
	if g.logLevel == "" {
		log.SetMinLevel(p.Local().LogLevel())
	}
	return log, p, nil
}

func newRunCmd(g *globalFlags) *cobra.Command {
	cfg := RunnerConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the chassis from joystick frames or a scenario file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, p, err := setup(g, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, err := NewRunner(ctx, cfg, p, log)
			if err != nil {
				log.Critical("Startup failed: %v", err)
				return err
			}
			defer runner.Close()

			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Critical("Run failed: %v", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Interface, "iface", "vcan0", "SocketCAN interface name")
	f.StringVar(&cfg.MapPath, "map", "config/can/can_map.csv", "Path to can_map.csv")
	f.StringVar(&cfg.ScenarioPath, "scenario", "", "Scenario JSON file; joystick frames are used when empty")
	return cmd
}

func newParamsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Load, validate and print the parameter set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup(g, false)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(p.Snapshot())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version [package...]",
		Short: "Print installed dpkg versions (default: jjobs).",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				args = []string{"jjobs"}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			for _, pkg := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", pkg, utils.DpkgVersion(ctx, pkg))
			}
		},
	}
}

func newBagsCmd(g *globalFlags) *cobra.Command {
	var at, reason string

	cmd := &cobra.Command{
		Use:   "bags",
		Short: "Find the recorded bags around an event and plan the excerpt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, p, err := setup(g, true)
			if err != nil {
				return err
			}

			target := time.Now()
			if at != "" {
				target, err = time.ParseInLocation(utils.TimestampLayout, at, time.Local)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			defer utils.Interval(log, "locate bags", 1)()
			defer utils.ExecTime(log, "locate bags")()

			plan, sel, err := bagfile.Locate(p.Local().Bag(), target, reason)
			if err != nil {
				log.Error("Locating bags failed: %v", err)
				return err
			}
			log.Info("window %s .. %s", utils.FormatTimestamp(plan.Start), utils.FormatTimestamp(plan.End))
			if sel.Empty() {
				return fmt.Errorf("no bag covers %s", utils.FormatTimestamp(target))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "output: %s\n", plan.Output)
			for _, part := range []bagfile.Part{bagfile.PartStart, bagfile.PartEnd} {
				mode := "append"
				if sel.WriteMode(part) {
					mode = "write"
				}
				fmt.Fprintf(out, "%s: %s (%s)\n", part, sel.Get(part), mode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Event time YYYY-MM-DD HH:MM:SS (default now)")
	cmd.Flags().StringVar(&reason, "reason", "manual", "Tag appended to the output directory name")
	return cmd
}
