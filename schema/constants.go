package schema

// Custom string types for type safety.
type (
	// Mode selects how per-run subtrees are produced.
	Mode string

	// Variant distinguishes the two normalization regimes of the sky maps.
	Variant string

	// Quantity identifies one entry of a histogram set.
	Quantity string

	// Category is the top-level namespace of an object inside a run subtree.
	Category string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the result store.
	DatabaseBackend string
)

// CombinedRunID is the run id of the sentinel pair covering every processed pair.
const CombinedRunID = -1

// All orchestration modes supported.
const (
	SequentialMode Mode = "sequential" // default
	MergeMode      Mode = "merge"
)

// Sky map variants. They are never substituted for one another.
const (
	Correlated   Variant = "correlated"
	Uncorrelated Variant = "uncorrelated"
)

// Known quantities produced by the per-run analysis.
const (
	QuantityTheta2         Quantity = "theta2"
	QuantityMSCW           Quantity = "mscw"
	QuantityMSCL           Quantity = "mscl"
	QuantityLogEnergy      Quantity = "log_energy"
	QuantityEmissionHeight Quantity = "emission_height"
	QuantityCoreDistance   Quantity = "core_distance"

	QuantitySkyMapCorrelated   Quantity = "skymap_correlated"
	QuantitySkyMapUncorrelated Quantity = "skymap_uncorrelated"
	QuantityMeanEnergyMap      Quantity = "mean_energy_map"
)

// Subtree categories.
const (
	CategoryOn           Category = "on"
	CategoryOff          Category = "off"
	CategoryAlpha        Category = "alpha"
	CategoryDiff         Category = "diff"
	CategorySignificance Category = "significance"
	CategoryQFactor      Category = "qfactor"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
)

// AllVariants lists both variants in a stable order.
var AllVariants = []Variant{Correlated, Uncorrelated}

// ValidModes lists all valid orchestration modes.
var ValidModes = map[Mode]struct{}{
	SequentialMode: {},
	MergeMode:      {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// SkyMapQuantity returns the sky map quantity holding counts for the variant.
func SkyMapQuantity(v Variant) Quantity {
	if v == Uncorrelated {
		return QuantitySkyMapUncorrelated
	}
	return QuantitySkyMapCorrelated
}

// IsSkyMap reports whether q is one of the two count maps.
func IsSkyMap(q Quantity) bool {
	return q == QuantitySkyMapCorrelated || q == QuantitySkyMapUncorrelated
}
