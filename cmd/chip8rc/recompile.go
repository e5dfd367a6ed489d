package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"

	"chip8rc/analysis"
	"chip8rc/chip8"
	"chip8rc/emit"
	"chip8rc/rom"
)

func recompileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory for the generated project"},
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "override the derived ROM identifier"},
		&cli.StringFlag{Name: "metadata", Usage: "JSON sidecar file (title, description, authors, release, recommended_cpu_hz)"},
		&cli.BoolFlag{Name: "no-comments", Usage: "omit instruction-address comments from the generated source"},
		&cli.BoolFlag{Name: "single-function", Usage: "force single-function emission mode"},
		&cli.BoolFlag{Name: "no-auto", Usage: "disable automatic fallback to single-function mode"},
		&cli.BoolFlag{Name: "debug", Usage: "print analysis statistics (blocks, functions, unreachable/unknown counts) to stderr"},
		&cli.BoolFlag{Name: "disasm", Usage: "print a disassembly listing to stdout instead of emitting C"},
	}
}

// recompileMetadata reads the same JSON sidecar format as batch.Metadata
// without depending on the batch package. Only recommended_cpu_hz is used
// for a single ROM; the other sidecar fields are ignored.
type recompileMetadata struct {
	RecommendedCPUHz int `json:"recommended_cpu_hz"`
}

func optionsFromContext(c *cli.Context) emit.Options {
	opts := emit.DefaultOptions()
	opts.EmitComments = !c.Bool("no-comments")
	opts.EmitAddressComments = !c.Bool("no-comments")
	opts.SingleFunctionMode = c.Bool("single-function")
	opts.NoAuto = c.Bool("no-auto")
	return opts
}

func recompileAction(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("missing ROM path", 1)
	}
	path := c.Args().First()

	r, err := rom.Load(path)
	if err != nil {
		return exitErr(err)
	}
	if name := c.String("name"); name != "" {
		r.ID = rom.Identifier(name)
	}

	instrs := chip8.DecodeAll(r.Data, 0x200)
	res := analysis.Analyze(instrs, 0x200)

	if c.Bool("disasm") {
		res.ListInstructions(os.Stdout)
		return nil
	}

	opts := optionsFromContext(c)
	if mf := c.String("metadata"); mf != "" {
		data, err := os.ReadFile(mf)
		if err != nil {
			return exitErr(errors.Wrapf(err, "reading metadata %s", mf))
		}
		var md recompileMetadata
		if err := json.Unmarshal(data, &md); err != nil {
			return exitErr(errors.Wrapf(err, "parsing metadata %s", mf))
		}
		if md.RecommendedCPUHz > 0 {
			opts.RecommendedCPUHz = md.RecommendedCPUHz
		}
	}

	if c.Bool("debug") {
		printDebugStats(res)
	}

	a := emit.ROM(r, res, opts)

	outDir := c.String("out")
	if err := ensureOutDir(outDir); err != nil {
		return exitErr(err)
	}
	if err := writeArtifact(outDir, a); err != nil {
		return exitErr(err)
	}

	fmt.Fprintf(c.App.Writer, "wrote %s (%s mode) to %s\n", r.ID, modeName(a.Mode), outDir)
	return nil
}

func printDebugStats(res *analysis.Result) {
	fmt.Fprintf(os.Stderr, "chip8rc: %d instructions, %d blocks, %d functions\n",
		res.Stats.TotalInstructions, len(res.Blocks), len(res.Functions))
	fmt.Fprintf(os.Stderr, "chip8rc: %d unreachable blocks, %d unreachable instructions, %d unknown opcodes\n",
		res.Stats.UnreachableBlocks, res.Stats.UnreachableInstructions, res.Stats.UnknownInstructions)
	fmt.Fprintf(os.Stderr, "chip8rc: shared blocks across functions: %v\n", res.SharedBlocks())
}

func modeName(m emit.Mode) string {
	if m == emit.ModeSingleFunction {
		return "single-function"
	}
	return "per-function"
}

func writeArtifact(outDir string, a *emit.Artifact) error {
	if err := writeFile(outDir, a.HeaderName, a.Header); err != nil {
		return err
	}
	if err := writeFile(outDir, a.SourceName, a.Source); err != nil {
		return err
	}
	if a.LauncherName != "" {
		if err := writeFile(outDir, a.LauncherName, a.Launcher); err != nil {
			return err
		}
	}
	if a.BuildName != "" {
		if err := writeFile(outDir, a.BuildName, a.Build); err != nil {
			return err
		}
	}
	for name, content := range a.RuntimeFiles {
		if err := writeFile(outDir, name, content); err != nil {
			return err
		}
	}
	return nil
}
