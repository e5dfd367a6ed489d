package batch

// Entry is one row of the catalog constant emitted alongside the
// multi-ROM launcher (spec.md §4.F step 4). Name/Title/Data/Size/Entry/
// RegisterHook are mandatory; the rest default from the derived
// identifier and simple heuristics when a metadata sidecar doesn't
// supply them.
type Entry struct {
	Name           string
	Title          string
	DataSymbol     string
	DataSizeSymbol string
	EntryName      string
	RegisterHook   string

	RecommendedCPUHz int
	Description      string
	Authors          string
	Release          string
}

// Metadata is the optional per-ROM JSON sidecar record (§6: "Metadata
// sidecar format: JSON ... one optional record per ROM").
type Metadata struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Authors          string `json:"authors"`
	Release          string `json:"release"`
	RecommendedCPUHz int    `json:"recommended_cpu_hz"`
}

// defaultCPUHz is the heuristic used when no metadata supplies one: 700
// instructions/sec is the long-standing de facto default for ROMs that
// don't declare a preferred speed.
const defaultCPUHz = 700

// newEntry builds a catalog entry from an emitted ROM's identity, applying
// metadata overrides where present.
func newEntry(name, dataSymbol, dataSizeSymbol, entryName, registerHook string, md *Metadata) Entry {
	e := Entry{
		Name:             name,
		Title:            name,
		DataSymbol:       dataSymbol,
		DataSizeSymbol:   dataSizeSymbol,
		EntryName:        entryName,
		RegisterHook:     registerHook,
		RecommendedCPUHz: defaultCPUHz,
	}
	if md == nil {
		return e
	}
	if md.Title != "" {
		e.Title = md.Title
	}
	e.Description = md.Description
	e.Authors = md.Authors
	e.Release = md.Release
	if md.RecommendedCPUHz > 0 {
		e.RecommendedCPUHz = md.RecommendedCPUHz
	}
	return e
}
