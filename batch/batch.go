// Package batch implements the multi-ROM orchestrator (spec.md §4.F):
// scan a directory of ROMs, recompile each under its own namespace, and
// assemble a catalog, shared launcher, and unified build file.
//
// Grounded on cmd/bbcdisasm's ParseDFS-driven extract/list commands: the
// "enumerate a directory, process every member, write prefixed output"
// shape here replaces "enumerate a disk image, process every file".
package batch

import (
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"chip8rc/analysis"
	"chip8rc/chip8"
	"chip8rc/emit"
	"chip8rc/rom"
)

//go:embed templates/*.tmpl
var batchTmplFS embed.FS

var batchTmpl = template.Must(template.ParseFS(batchTmplFS, "templates/*.tmpl"))

var romExtensions = map[string]bool{
	".ch8":   true,
	".chip8": true,
}

// ROMSource is one discovered ROM file paired with its optional sidecar
// metadata path (§6: "<rom>.json" next to "<rom>.ch8").
type ROMSource struct {
	Path         string
	MetadataPath string
}

// ScanDir enumerates .ch8/.chip8 files in dir, sorted by name for
// deterministic catalog ordering (§4.F step 1).
func ScanDir(dir string) ([]ROMSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", dir)
	}

	var out []ROMSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !romExtensions[ext] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		meta := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		if _, err := os.Stat(meta); err != nil {
			meta = ""
		}
		out = append(out, ROMSource{Path: path, MetadataPath: meta})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Member is one ROM's compiled artifact plus its catalog entry.
type Member struct {
	Prefix   string
	Artifact *emit.Artifact
	Entry    Entry
}

// Project is the complete output of compiling a directory of ROMs: every
// member's source/header, the shared catalog, the shared launcher, the
// unified build file, and the runtime library (§4.F steps 3-6).
type Project struct {
	Members      []Member
	Catalog      []Entry
	Launcher     string
	Build        string
	RuntimeFiles map[string]string
}

// CompileDir runs the full batch pipeline over dir (§4.F). Two ROMs that
// would derive the same identifier are disambiguated with a numeric
// suffix so catalog entries and emitted symbols never collide (§4.F
// invariant: "Two catalog entries never share a prefix").
func CompileDir(dir string, opts emit.Options) (*Project, error) {
	sources, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}

	p := &Project{RuntimeFiles: emit.RuntimeFiles()}
	seen := make(map[string]int)

	for _, src := range sources {
		r, err := rom.Load(src.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", src.Path)
		}

		prefix := uniquePrefix(r.ID, seen)

		instrs := chip8.DecodeAll(r.Data, 0x200)
		res := analysis.Analyze(instrs, 0x200)

		a := emit.ROMNamespaced(r, res, opts, prefix, 0x200)

		md, err := loadMetadata(src.MetadataPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading metadata for %s", src.Path)
		}

		entry := newEntry(
			prefix,
			emit.DataSymbol(prefix),
			prefix+"_rom_data_size",
			emit.EntryName(prefix),
			emit.RegisterHookName(prefix),
			md,
		)

		p.Members = append(p.Members, Member{Prefix: prefix, Artifact: a, Entry: entry})
		p.Catalog = append(p.Catalog, entry)
	}

	p.Launcher = renderBatchLauncher(p.Catalog)
	p.Build = renderBatchBuild(p.Members)

	return p, nil
}

// uniquePrefix appends a numeric suffix (_2, _3, ...) the second and
// later time an identifier recurs, so every catalog entry/emitted symbol
// set stays collision-free.
func uniquePrefix(id string, seen map[string]int) string {
	seen[id]++
	if n := seen[id]; n > 1 {
		return id + "_" + strconv.Itoa(n)
	}
	return id
}

func loadMetadata(path string) (*Metadata, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

func renderBatchLauncher(catalog []Entry) string {
	headers := make([]string, 0, len(catalog))
	for _, e := range catalog {
		headers = append(headers, e.Name+".h")
	}
	data := struct {
		Catalog []Entry
		Headers []string
	}{catalog, headers}

	var out strings.Builder
	if err := batchTmpl.ExecuteTemplate(&out, "launcher.tmpl", data); err != nil {
		panic(err)
	}
	return out.String()
}

func renderBatchBuild(members []Member) string {
	sources := make([]string, 0, len(members))
	for _, m := range members {
		sources = append(sources, m.Artifact.SourceName)
	}
	data := struct{ Sources string }{strings.Join(sources, " ")}
	var out strings.Builder
	if err := batchTmpl.ExecuteTemplate(&out, "build.tmpl", data); err != nil {
		panic(err)
	}
	return out.String()
}
