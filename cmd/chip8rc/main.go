package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "chip8rc"
	app.Usage = "Statically recompile CHIP-8 ROMs into native C"
	app.Action = func(c *cli.Context) error {
		if c.Args().Len() > 0 {
			return recompileAction(c)
		}
		cli.ShowAppHelp(c)
		return nil
	}
	app.Flags = recompileFlags()
	app.Commands = []*cli.Command{
		{
			Name:      "recompile",
			Usage:     "Recompile a single ROM into a native C project",
			ArgsUsage: "ROM",
			Flags:     recompileFlags(),
			Action:    recompileAction,
		},
		{
			Name:      "batch",
			Usage:     "Recompile every ROM in a directory into one multi-ROM program",
			ArgsUsage: "DIR",
			Flags:     batchFlags(),
			Action:    batchAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
