package config

import "time"

// Default runtime limits and guardrails for the SIDPOL statistics service.
// They can be overridden through the layered configuration in config.go and
// are referenced by internal/runtime and internal/datasets.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxCachedDatasets     = 2

	// Payload and row limits
	DefaultMaxPayloadBytes = 256 * 1024 // 256KB
	DefaultPageSize        = 50
	DefaultMaxPageSize     = 1000
	DefaultMaxQueryRows    = 5000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultDownloadTimeout       = 120 * time.Second
	DefaultPageFetchTimeout      = 30 * time.Second

	// Dataset cache
	DefaultDatasetIdleTTL       = 30 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute
)

const (
	// Analytics
	DefaultTopDepartments         = 10
	DefaultTopModalitiesPerDept   = 5
	DefaultTrendHorizon           = 3
	DefaultCanonicalPreviewRows   = 100
	AllDepartmentsSentinel        = "Todos"
	AllProvincesSentinel          = "Todas"
	NotAvailable                  = "N/A"
	DefaultSourcePattern          = "DATASET_Denuncias_Policiales*.csv"
	DefaultFallbackSourceFilename = "DATASET_Denuncias_Policiales.csv"
	DefaultDatasetPageURL         = "https://www.datosabiertos.gob.pe/node/21805"
	DefaultUserAgent              = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultStoreDriver            = "sqlite"
	DefaultStoreDSN               = "data/denuncias.db"
	DefaultHTTPAddr               = ":8080"
)
