package emit

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"chip8rc/analysis"
	"chip8rc/rom"
)

//go:embed templates/runtime
var runtimeFS embed.FS

//go:embed templates/project/*.tmpl
var projectTmplFS embed.FS

var projectTmpl = template.Must(template.ParseFS(projectTmplFS, "templates/project/*.tmpl"))

// Artifact is the complete output of emitting one ROM: the C translation
// unit split across a header and a source file (which also carries the
// embedded ROM data), an optional single-ROM launcher
// and build file, plus the runtime library files it links against (§4.D,
// §4.E, §6).
type Artifact struct {
	Mode Mode

	HeaderName string
	Header     string

	SourceName string
	Source     string

	LauncherName string
	Launcher     string

	BuildName string
	Build     string

	// RuntimeFiles maps chip8rt/<name> to file content, copied alongside
	// the generated source (§4.E).
	RuntimeFiles map[string]string

	EntryName        string
	RegisterHookName string
	DataSymbol       string
}

// ROM emits a single ROM as a standalone project (§4.D, §6). r is the
// loaded image, res the control-flow analysis over its decoded
// instructions; symbols carry no namespace prefix in single-ROM mode.
func ROM(r *rom.ROM, res *analysis.Result, opts Options) *Artifact {
	return emit(r, res, opts, "", 0x200, true)
}

// ROMNamespaced emits a ROM as one member of a batch (§4.F): every symbol
// is prefixed, and no per-ROM launcher/build file is produced since the
// batch orchestrator supplies a single shared one.
func ROMNamespaced(r *rom.ROM, res *analysis.Result, opts Options, prefix string, entry uint16) *Artifact {
	return emit(r, res, opts, prefix, entry, false)
}

// emit is shared by single-ROM and batch emission; prefix namespaces every
// symbol and standalone controls whether a launcher/build file is produced
// (batch mode supplies its own, spanning every ROM, see package batch).
func emit(r *rom.ROM, res *analysis.Result, opts Options, prefix string, entry uint16, standalone bool) *Artifact {
	mode := chooseMode(res, opts)

	a := &Artifact{
		Mode:             mode,
		EntryName:        EntryName(prefix),
		RegisterHookName: RegisterHookName(prefix),
		DataSymbol:       DataSymbol(prefix),
		RuntimeFiles:     readRuntimeFiles(),
	}

	var body strings.Builder

	switch mode {
	case ModePerFunction:
		entries := sortedFunctionEntries(res)
		for _, fe := range entries {
			body.WriteString(emitFunctionPerFunction(res, res.Functions[fe], prefix, opts))
		}
		body.WriteString(emitRegisterHook(res, prefix))
		body.WriteString(emitEntryThunk(prefix, entry))

	case ModeSingleFunction:
		body.WriteString(emitProgramSingleFunction(res, prefix, entry, opts))
		body.WriteString(emitRegisterHookSingle(prefix))
	}

	a.HeaderName = headerFileName(prefix)
	a.Header = renderHeader(prefix, r, opts)

	a.SourceName = sourceFileName(prefix)
	a.Source = renderSource(prefix, a.HeaderName, body.String(), r, opts)

	if standalone {
		a.LauncherName = "main.c"
		a.Launcher = renderLauncher(prefix, a.HeaderName, opts)
		a.BuildName = "Makefile"
		a.Build = renderBuild([]string{a.SourceName}, a.LauncherName)
	}

	return a
}

func sortedFunctionEntries(res *analysis.Result) []uint16 {
	out := make([]uint16, 0, len(res.Functions))
	for e := range res.Functions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// emitRegisterHook emits the function that populates the process-wide
// dispatch table with every per-function routine plus every JP_V0 base
// (§4.D, §5): required so computed jumps and batch ROM switches can find
// their targets.
func emitRegisterHook(res *analysis.Result, prefix string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "void %s(void) {\n", RegisterHookName(prefix))
	for _, fe := range sortedFunctionEntries(res) {
		fmt.Fprintf(&out, "    chip8_dispatch_register(0x%03X, %s);\n", fe, FunctionName(prefix, fe))
	}
	out.WriteString("}\n\n")
	return out.String()
}

// emitRegisterHookSingle emits the register hook for single-function
// mode: the whole program is one routine, registered at its entry point
// only (batch mode still needs this to switch the active ROM, §5).
func emitRegisterHookSingle(prefix string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "void %s(void) {\n", RegisterHookName(prefix))
	fmt.Fprintf(&out, "    chip8_dispatch_register(CHIP8_PROGRAM_START, %s);\n", EntryName(prefix))
	out.WriteString("}\n\n")
	return out.String()
}

// emitEntryThunk emits chip8_main (or <prefix>_main): the routine the
// launcher calls to start the ROM, which simply invokes the function
// registered at the entry address (§4.D, §6).
func emitEntryThunk(prefix string, entry uint16) string {
	var out strings.Builder
	fmt.Fprintf(&out, "void %s(Chip8Context* ctx) {\n", EntryName(prefix))
	fmt.Fprintf(&out, "    %s(ctx);\n", FunctionName(prefix, entry))
	out.WriteString("}\n\n")
	return out.String()
}

func headerFileName(prefix string) string {
	if prefix == "" {
		return "chip8_rom.h"
	}
	return prefix + ".h"
}

func sourceFileName(prefix string) string {
	if prefix == "" {
		return "chip8_rom.c"
	}
	return prefix + ".c"
}

func renderHeader(prefix string, r *rom.ROM, opts Options) string {
	guard := strings.ToUpper(prefix)
	if guard == "" {
		guard = "ROM"
	}
	data := struct {
		Guard            string
		DataSymbol       string
		DataSymbolSize   string
		RegisterHookName string
		EntryName        string
	}{guard, DataSymbol(prefix), dataSymbolSize(prefix), RegisterHookName(prefix), EntryName(prefix)}

	var out strings.Builder
	if err := projectTmpl.ExecuteTemplate(&out, "header.tmpl", data); err != nil {
		panic(err)
	}
	return out.String()
}

func dataSymbolSize(prefix string) string {
	if prefix == "" {
		return "chip8_rom_data_size"
	}
	return prefix + "_rom_data_size"
}

func renderSource(prefix, headerName, body string, r *rom.ROM, opts Options) string {
	data := struct {
		Size           int
		ID             string
		HeaderName     string
		EmbedROMData   bool
		DataSymbol     string
		DataSymbolSize string
		DataBytes      string
	}{
		Size:           len(r.Data),
		ID:             r.ID,
		HeaderName:     headerName,
		EmbedROMData:   opts.EmbedROMData,
		DataSymbol:     DataSymbol(prefix),
		DataSymbolSize: dataSymbolSize(prefix),
		DataBytes:      formatDataBytes(r.Data),
	}

	var out strings.Builder
	if err := projectTmpl.ExecuteTemplate(&out, "source.tmpl", data); err != nil {
		panic(err)
	}
	out.WriteString(body)
	return out.String()
}

// formatDataBytes renders a ROM's bytes as a C initializer list, 12 bytes
// per line (bbcdisasm's listing output is similarly column-wrapped; see
// analysis/listing.go).
func formatDataBytes(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i%12 == 0 {
			if i != 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("    ")
		}
		fmt.Fprintf(&sb, "0x%02X, ", b)
	}
	return sb.String()
}

func renderLauncher(prefix, headerName string, opts Options) string {
	cpuHz := opts.RecommendedCPUHz
	if cpuHz <= 0 {
		cpuHz = 700
	}
	data := struct {
		ID               string
		HeaderName       string
		RegisterHookName string
		EntryName        string
		DataSymbol       string
		VFReset          string
		ShiftUsesVy      string
		MemoryIncrementI string
		SpriteWrap       string
		JumpUsesVx       string
		DisplayWait      string
		CPUHz            int
	}{
		ID:               prefix,
		HeaderName:       headerName,
		RegisterHookName: RegisterHookName(prefix),
		EntryName:        EntryName(prefix),
		DataSymbol:       DataSymbol(prefix),
		VFReset:          cBool(opts.Quirks.VFReset),
		ShiftUsesVy:      cBool(opts.Quirks.ShiftUsesVy),
		MemoryIncrementI: cBool(opts.Quirks.MemoryIncrementI),
		SpriteWrap:       cBool(opts.Quirks.SpriteWrap),
		JumpUsesVx:       cBool(opts.Quirks.JumpUsesVx),
		DisplayWait:      cBool(opts.Quirks.DisplayWait),
		CPUHz:            cpuHz,
	}
	var out strings.Builder
	if err := projectTmpl.ExecuteTemplate(&out, "launcher.tmpl", data); err != nil {
		panic(err)
	}
	return out.String()
}

func cBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func renderBuild(sources []string, launcher string) string {
	data := struct {
		Sources  string
		Launcher string
	}{strings.Join(sources, " "), launcher}
	var out strings.Builder
	if err := projectTmpl.ExecuteTemplate(&out, "build.tmpl", data); err != nil {
		panic(err)
	}
	return out.String()
}

// RuntimeFiles exposes the embedded runtime library contents for callers
// (the batch orchestrator) that write them once for a whole multi-ROM
// project rather than once per ROM.
func RuntimeFiles() map[string]string {
	return readRuntimeFiles()
}

// readRuntimeFiles loads every file embedded from templates/runtime, keyed
// by its chip8rt/<name> output path (§4.E).
func readRuntimeFiles() map[string]string {
	out := make(map[string]string)
	entries, err := runtimeFS.ReadDir("templates/runtime")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := runtimeFS.ReadFile("templates/runtime/" + e.Name())
		if err != nil {
			panic(err)
		}
		out["chip8rt/"+e.Name()] = string(data)
	}
	return out
}
