package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	agent "github.com/ethereum-optimism/infra/test-agent"
	"github.com/ethereum-optimism/infra/test-agent/exitcodes"
	"github.com/ethereum-optimism/infra/test-agent/flags"
	"github.com/ethereum-optimism/infra/test-agent/service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "test-agent"
	app.Usage = "Distributed Test Execution Agent"
	app.Description = "test-agent discovers, filters and executes test suites"
	app.Commands = []*cli.Command{
		{
			Name:   "discover",
			Usage:  "Discover the suite tree and publish the discovery report",
			Flags:  cliapp.ProtectFlags(flags.DiscoverFlags),
			Action: cliapp.LifecycleCmd(makeRun(agent.ModeDiscover)),
		},
		{
			Name:   "execute",
			Usage:  "Execute the selected tests and publish the execution report",
			Flags:  cliapp.ProtectFlags(flags.ExecuteFlags),
			Action: cliapp.LifecycleCmd(makeRun(agent.ModeExecute)),
		},
	}
	// An unknown or missing command is a usage error, never a silent success.
	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(c.App.ErrWriter, "unknown command: %s\n", command)
		_ = cli.ShowAppHelp(c)
		os.Exit(exitcodes.RuntimeErr)
	}
	app.Action = func(c *cli.Context) error {
		_ = cli.ShowAppHelp(c)
		return cli.Exit("a command is required: discover or execute", exitcodes.RuntimeErr)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if agent.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if agent.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start healthz/metrics server
	ctx := context.Background()
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func makeRun(mode agent.Mode) func(*cli.Context, context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		logCfg := oplog.ReadCLIConfig(ctx)
		log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
		oplog.SetGlobalLogHandler(log.Handler())
		oplog.SetupDefaults()

		cfg, err := agent.NewConfig(ctx, log)
		if err != nil {
			// Wrap in RuntimeError to signal this should exit with code 2
			return nil, agent.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
		}

		cfg.Log.Debug("Config", "config", cfg)

		svc, err := agent.New(ctx.Context, cfg, Version, mode, closeApp)
		if err != nil {
			return nil, agent.NewRuntimeError(fmt.Errorf("failed to create agent: %w", err))
		}

		return svc, nil
	}
}
