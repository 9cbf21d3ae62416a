package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Version = "development"
var BuildTime = "" // Set by the release build

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type runFlags struct {
	rig    string
	script string
	stats  string
	export string
	ticks  int
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:   "limbik",
		Short: "Procedural limb IK runner",
		Long: `limbik binds the limbs of a rig to pole-biased IK chains and drives
their end joints from a Lua script or the built-in foot placement policy.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "save/config.ini", "config file, created from defaults if missing")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	var rf runFlags
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the simulation for the configured number of ticks.

Examples:
  # Built-in biped walking over a plane
  limbik run

  # Drive a glTF rig with the bundled sine wave script and save the pose
  limbik run --rig rig.gltf --script builtin --export save/posed.gltf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			rf.apply(cmd, cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSimulation(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}
	runCmd.Flags().StringVar(&rf.rig, "rig", "", "glTF or YAML rig (default built-in biped)")
	runCmd.Flags().StringVar(&rf.script, "script", "", `Lua driver script, or "builtin"`)
	runCmd.Flags().StringVar(&rf.stats, "stats", "", "stats JSON file")
	runCmd.Flags().StringVar(&rf.export, "export", "", "write the final pose as glTF")
	runCmd.Flags().IntVar(&rf.ticks, "ticks", 0, "number of ticks to simulate")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			_, err = cfg.IniFile.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	root.AddCommand(runCmd, configCmd)
	return root
}

// apply overrides config values with the flags that were set explicitly.
func (rf *runFlags) apply(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("rig") {
		cfg.Simulation.Rig = rf.rig
	}
	if flags.Changed("script") {
		cfg.Simulation.Script = rf.script
	}
	if flags.Changed("stats") {
		cfg.Simulation.Stats = rf.stats
	}
	if flags.Changed("export") {
		cfg.Simulation.Export = rf.export
	}
	if flags.Changed("ticks") && rf.ticks >= 0 {
		cfg.Simulation.Ticks = rf.ticks
	}
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(lvl),
	)
	return zap.New(core), nil
}

func runSimulation(ctx context.Context, cfg *Config, logger *zap.Logger, out io.Writer) error {
	skel, err := loadRig(cfg.Simulation.Rig)
	if err != nil {
		return fmt.Errorf("load rig: %w", err)
	}
	sys, err := newSystem(cfg, skel, logger)
	if err != nil {
		return err
	}
	defer sys.shutdown()

	if err := sys.run(ctx, cfg.Simulation.Ticks); err != nil {
		return err
	}

	for _, lb := range sys.order {
		pose := lb.rt.CurrentPose()
		fmt.Fprintf(out, "%-12s %-9s ticks=%d stretched=%d converged=%d maxError=%.4f\n",
			lb.props.Name, pose.Mode, lb.stats.Ticks, lb.stats.Stretched, lb.stats.Converged, lb.stats.MaxError)
	}

	if file := cfg.Simulation.Stats; file != "" {
		if err := saveStats(file, sys); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
	}
	if file := cfg.Simulation.Export; file != "" {
		if err := skel.Export(file); err != nil {
			return fmt.Errorf("export %q: %w", file, err)
		}
		logger.Info("pose exported", zap.String("file", file))
	}
	return nil
}
