package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	// ServiceTimeout bounds every call to an external model or embedding service.
	ServiceTimeout time.Duration `envconfig:"SERVICE_TIMEOUT" default:"30s"`
	// MaxHistory caps how many persisted utterances are replayed into a turn (0 = all).
	MaxHistory int `envconfig:"CONVERSATION_MAX_HISTORY" default:"0"`
}

type ExtractionModelConfig struct {
	Model       string  `envconfig:"EXTRACTION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"EXTRACTION_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"EXTRACTION_TEMPERATURE" default:"0"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"10"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.1"`
}

type EmbeddingConfig struct {
	Model      string        `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	Dimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	TaskType   string        `envconfig:"EMBEDDING_TASK_TYPE" default:"SEMANTIC_SIMILARITY"`
	CacheTTL   time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"168h"`
}

type RetrievalConfig struct {
	TopK        int    `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	CatalogPath string `envconfig:"CATALOG_PATH"`
}

type WorkerConfig struct {
	Count                  int           `envconfig:"WORKER_COUNT" default:"4"`
	QueueSize              int           `envconfig:"WORKER_QUEUE_SIZE" default:"64"`
	StorageRetryMaxElapsed time.Duration `envconfig:"STORAGE_RETRY_MAX_ELAPSED" default:"30s"`
}
