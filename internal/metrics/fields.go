package metrics

// Metric attribute keys shared by every instrument.
const (
	AttrMethod  = "method"
	AttrRoute   = "route"
	AttrStatus  = "status"
	AttrSport   = "sport"
	AttrSource  = "source"
	AttrOutcome = "outcome"
)

// Translation sources
const (
	SourceFresh   = "fresh"
	SourceCache   = "cache"
	SourcePreview = "preview"
)

// Cache lookup outcomes
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// SportOther labels translations for sports outside the catalog
const SportOther = "other"
