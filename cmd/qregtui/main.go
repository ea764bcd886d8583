package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"qregsim"
)

func main() {
	app := &cli.App{
		Name:  "qregtui",
		Usage: "interactive quantum register explorer",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "qubits", Aliases: []string{"n"}, Value: 3, Usage: "initial register width"},
			&cli.StringFlag{Name: "kwargs", Value: "{}", Usage: "device configuration mapping, e.g. '{'is_qbdd': True}'"},
			&cli.IntFlag{Name: "shots", Value: 512, Usage: "shots per sampling run"},
			&cli.Uint64Flag{Name: "seed", Value: 0, Usage: "RNG seed, 0 picks one"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging on stderr"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	opts, err := qregsim.ParseOptions(c.String("kwargs"))
	if err != nil {
		return err
	}
	opts.Seed = c.Uint64("seed")
	if c.Bool("verbose") {
		opts.Logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.DebugLevel})
	}

	dev, err := qregsim.NewWithOptions(opts)
	if err != nil {
		return err
	}
	handles, err := dev.AllocateQubits(c.Int("qubits"))
	if err != nil {
		return err
	}
	if err := dev.SetShots(c.Int("shots")); err != nil {
		return err
	}

	_, err = tea.NewProgram(newModel(dev, handles), tea.WithAltScreen()).Run()
	return err
}
