package main

import (
	"fmt"

	cli "github.com/urfave/cli/v2"

	"chip8rc/batch"
	"chip8rc/emit"
)

func batchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory for the generated multi-ROM project"},
		&cli.BoolFlag{Name: "no-comments", Usage: "omit instruction-address comments from the generated source"},
		&cli.BoolFlag{Name: "single-function", Usage: "force single-function emission mode for every ROM"},
		&cli.BoolFlag{Name: "no-auto", Usage: "disable automatic fallback to single-function mode"},
	}
}

func batchAction(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("missing ROM directory", 1)
	}
	dir := c.Args().First()

	opts := emit.DefaultOptions()
	opts.EmitComments = !c.Bool("no-comments")
	opts.EmitAddressComments = !c.Bool("no-comments")
	opts.SingleFunctionMode = c.Bool("single-function")
	opts.NoAuto = c.Bool("no-auto")

	project, err := batch.CompileDir(dir, opts)
	if err != nil {
		return exitErr(err)
	}
	if len(project.Members) == 0 {
		return cli.Exit(fmt.Sprintf("no .ch8/.chip8 ROMs found in %s", dir), 1)
	}

	outDir := c.String("out")
	if err := ensureOutDir(outDir); err != nil {
		return exitErr(err)
	}

	for _, m := range project.Members {
		if err := writeArtifact(outDir, m.Artifact); err != nil {
			return exitErr(err)
		}
	}
	if err := writeFile(outDir, "main.c", project.Launcher); err != nil {
		return exitErr(err)
	}
	if err := writeFile(outDir, "Makefile", project.Build); err != nil {
		return exitErr(err)
	}
	for name, content := range project.RuntimeFiles {
		if err := writeFile(outDir, name, content); err != nil {
			return exitErr(err)
		}
	}

	fmt.Fprintf(c.App.Writer, "wrote %d ROM(s) to %s\n", len(project.Members), outDir)
	return nil
}
