package formatter

import (
	"editortrace/internal/core/model"
	"editortrace/internal/data/store"
)

// SummaryData bundles everything the summary report needs about one
// ingested log.
type SummaryData struct {
	LogFile     string
	Header      model.HeaderInfo
	ParseTimeMs float64
	Counts      store.Counts
	Categories  []store.CategoryTotal
}
