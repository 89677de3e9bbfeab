package domain

import "fmt"

// Vocabulary holds the read-only lookup tables used to validate extracted
// path tokens. The extractor treats these as injected state; loading them
// from descriptor files is the descriptors adapter's job.
type Vocabulary struct {
	// Variables maps a CMIP-style variable code to a short description.
	Variables map[string]string

	// Experiments maps an experiment identifier to a short description.
	Experiments map[string]string

	// Institutions maps an institution code to the models it submitted.
	Institutions map[string][]string

	// IceSheets lists the valid Projection-{X} suffixes.
	IceSheets map[string]bool
}

// KnowsVariable reports whether the variable code is in the vocabulary.
func (v *Vocabulary) KnowsVariable(name string) bool {
	_, ok := v.Variables[name]
	return ok
}

// KnowsExperiment reports whether the experiment identifier is known.
func (v *Vocabulary) KnowsExperiment(name string) bool {
	_, ok := v.Experiments[name]
	return ok
}

// KnowsInstitution reports whether the institution code is known.
func (v *Vocabulary) KnowsInstitution(name string) bool {
	_, ok := v.Institutions[name]
	return ok
}

// KnowsModel reports whether any institution submitted the named model.
func (v *Vocabulary) KnowsModel(name string) bool {
	for _, models := range v.Institutions {
		for _, m := range models {
			if m == name {
				return true
			}
		}
	}
	return false
}

// StandardVariables contains the ISMIP6 projection output variables.
// Reference: Nowicki et al. (2016), ISMIP6 experimental protocol, Table A1.
var StandardVariables = map[string]string{
	// State variables.
	"lithk":     "ice thickness",
	"orog":      "surface elevation",
	"base":      "base elevation",
	"topg":      "bedrock elevation",
	"hfgeoubed": "geothermal heat flux",

	// Flux variables.
	"acabf":       "surface mass balance flux",
	"libmassbf":   "basal mass balance flux",
	"libmassbffl": "basal mass balance flux beneath floating ice",
	"libmassbfgr": "basal mass balance flux beneath grounded ice",
	"licalvf":     "calving flux",
	"lifmassbf":   "ice front melt and calving flux",
	"dlithkdt":    "ice thickness imbalance",

	// Velocities.
	"velsurf":  "surface velocity magnitude",
	"xvelsurf": "surface velocity in x",
	"yvelsurf": "surface velocity in y",
	"zvelsurf": "surface velocity in z",
	"velbase":  "basal velocity magnitude",
	"xvelbase": "basal velocity in x",
	"yvelbase": "basal velocity in y",
	"zvelbase": "basal velocity in z",
	"velmean":  "mean velocity magnitude",
	"xvelmean": "mean velocity in x",
	"yvelmean": "mean velocity in y",

	// Temperatures.
	"litemptop":   "surface temperature",
	"litempsnic":  "snow internal temperature",
	"litempbotgr": "basal temperature beneath grounded ice",
	"litempbotfl": "basal temperature beneath floating ice",

	// Masks and fractions.
	"sftgif": "land ice area fraction",
	"sftgrf": "grounded ice sheet area fraction",
	"sftflf": "floating ice shelf area fraction",

	// Basal conditions.
	"strbasemag": "basal drag magnitude",

	// Scalar (integrated) outputs.
	"lim":           "total ice sheet mass",
	"limnsw":        "mass above floatation",
	"iareagr":       "grounded ice area",
	"iareafl":       "floating ice area",
	"tendacabf":     "total surface mass balance flux",
	"tendlibmassbf": "total basal mass balance flux",
	"tendlicalvf":   "total calving flux",
}

// StandardExperiments contains the ISMIP6 projection and control experiments.
var StandardExperiments = map[string]string{
	"hist":      "historical spin-up",
	"ctrl":      "constant-climate control",
	"ctrl_proj": "projection control",
	"asmb":      "surface mass balance anomaly schematic",
	"abmb":      "basal mass balance anomaly schematic",
}

// StandardInstitutions maps institution codes to submitted models, covering
// both ice sheets.
var StandardInstitutions = map[string][]string{
	"AWI":      {"PISM1", "ISSM1", "ISSM2"},
	"BGC":      {"BISICLES"},
	"DOE":      {"MALI"},
	"GSFC":     {"CISSM"},
	"ILTS_PIK": {"SICOPOLIS", "SICOPOLIS1", "SICOPOLIS2", "SICOPOLIS3"},
	"IMAU":     {"IMAUICE1", "IMAUICE2"},
	"JPL1":     {"ISSM"},
	"LSCE":     {"GRISLI", "GRISLI2"},
	"MUN":      {"GSM1", "GSM2"},
	"NCAR":     {"CISM"},
	"PIK":      {"PISM1", "PISM2"},
	"UAF":      {"PISM1", "PISM2"},
	"UCIJPL":   {"ISSM", "ISSM1", "ISSM2"},
	"ULB":      {"fETISh_16km", "fETISh_32km"},
	"UTAS":     {"ElmerIce"},
	"VUB":      {"AISMPALEO", "GISMHOMv1"},
	"VUW":      {"PISM"},
}

// StandardIceSheets lists the Projection-{X} partitions present in the bucket.
var StandardIceSheets = map[string]bool{
	"AIS": true, // Antarctic ice sheet.
	"GIS": true, // Greenland ice sheet.
}

// DefaultVocabulary returns the built-in lookup tables, with the numbered
// projection experiments (exp01..exp13, expA1..expA8, expB1..expB10) filled
// in programmatically.
func DefaultVocabulary() *Vocabulary {
	experiments := make(map[string]string, len(StandardExperiments)+32)
	for k, v := range StandardExperiments {
		experiments[k] = v
	}
	for i := 1; i <= 13; i++ {
		experiments[fmt.Sprintf("exp%02d", i)] = "core projection experiment"
	}
	for i := 1; i <= 8; i++ {
		experiments[fmt.Sprintf("expA%d", i)] = "extended projection experiment (group A)"
	}
	for i := 1; i <= 10; i++ {
		experiments[fmt.Sprintf("expB%d", i)] = "extended projection experiment (group B)"
	}

	return &Vocabulary{
		Variables:    StandardVariables,
		Experiments:  experiments,
		Institutions: StandardInstitutions,
		IceSheets:    StandardIceSheets,
	}
}
