package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/logging"
)

// Memory backends understood by the persister factory
const (
	BackendFile     = "file"
	BackendGit      = "git"
	BackendS3       = "s3"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var (
	knownBackends   = []string{BackendFile, BackendGit, BackendS3, BackendMongo, BackendPostgres, BackendMemory}
	knownStrategies = []string{"FAST", "BALANCED", "PRECISE", "CLOUD", "AUTO", "COMPARE", "RAPIDO", "BALANCEADO", "PRECISO", "AZURE"}
)

// PipelineConfig holds complete pipeline configuration
type PipelineConfig struct {
	// Logging configuration
	Logging *logging.LogConfig `json:"logging"`

	// OCR engines and language model access
	Engines *EnginesConfig `json:"engines"`

	// Correction memory persistence
	Memory *MemoryConfig `json:"memory"`

	// Processing configuration
	Processing *ProcessingConfig `json:"processing"`

	// Server configuration
	Server *ServerConfig `json:"server"`

	// Batch workflows
	Temporal *TemporalConfig `json:"temporal"`

	// Data paths
	DataPaths *DataPathsConfig `json:"data_paths"`
}

// EnginesConfig holds OCR engine settings
type EnginesConfig struct {
	DefaultStrategy   string        `json:"default_strategy"`
	TesseractLanguage string        `json:"tesseract_language"` // e.g. spa, spa+eng
	PaddleOCRURL      string        `json:"paddleocr_url"`      // empty disables the engine
	EasyOCRURL        string        `json:"easyocr_url"`        // empty disables the engine
	OpenAIAPIKey      string        `json:"-"`
	VisionModel       string        `json:"vision_model"`
	LLMModel          string        `json:"llm_model"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	EnableLLMCleanup  bool          `json:"enable_llm_cleanup"`
	EnableLLMEntities bool          `json:"enable_llm_entities"`

	// Remote engines (sidecars and vision) are spaced and backed off
	RemoteMinInterval time.Duration `json:"remote_min_interval"`
	RemoteErrorLimit  int           `json:"remote_error_limit"` // zero disables backoff
	RemoteBackoffStep time.Duration `json:"remote_backoff_step"`
	RemoteMaxBackoff  time.Duration `json:"remote_max_backoff"`
	VisionMinInterval time.Duration `json:"vision_min_interval"`
}

// MemoryConfig selects and configures the correction memory backend
type MemoryConfig struct {
	Backend          string        `json:"backend"`
	FallbackBackend  string        `json:"fallback_backend"` // empty disables fallback
	OperationTimeout time.Duration `json:"operation_timeout"`

	Path    string `json:"path"`     // file backend
	GitRepo string `json:"git_repo"` // git backend

	S3Bucket   string `json:"s3_bucket"`
	S3Key      string `json:"s3_key"`
	S3Region   string `json:"s3_region"`
	S3Endpoint string `json:"s3_endpoint"` // for S3 compatible stores

	MongoURI        string `json:"mongo_uri"`
	MongoDatabase   string `json:"mongo_database"`
	MongoCollection string `json:"mongo_collection"`

	PostgresDSN   string `json:"postgres_dsn"`
	PostgresTable string `json:"postgres_table"`
}

// ProcessingConfig holds processing pipeline settings
type ProcessingConfig struct {
	MaxFileSize  int64 `json:"max_file_size"`  // bytes
	PDFMaxPages  int   `json:"pdf_max_pages"`  // pages rasterized per document
	PDFDPI       int   `json:"pdf_dpi"`        // rasterization resolution
	MaxImageSide int   `json:"max_image_side"` // images are downscaled beyond this

	// Fuzzy thresholds for the correction memory
	NameThreshold       int `json:"name_threshold"`
	MedicationThreshold int `json:"medication_threshold"`

	EnableEntities    bool          `json:"enable_entities"`
	CleanOCRText      bool          `json:"clean_ocr_text"` // rule-based cleanup before extraction
	ExtractionTimeout time.Duration `json:"extraction_timeout"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	MaxRequestSize int64         `json:"max_request_size"`
}

// TemporalConfig holds batch workflow settings
type TemporalConfig struct {
	Enabled   bool   `json:"enabled"`
	HostPort  string `json:"host_port"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue"`
}

// DataPathsConfig holds all data directory paths
type DataPathsConfig struct {
	DataRoot  string `json:"data_root"`
	LogDir    string `json:"log_dir"`
	TempDir   string `json:"temp_dir"`
	UploadDir string `json:"upload_dir"`
}

// DefaultPipelineConfig returns a complete default configuration
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Logging: logging.DefaultLogConfig(),

		Engines: &EnginesConfig{
			DefaultStrategy:   "AUTO",
			TesseractLanguage: "spa",
			VisionModel:       "gpt-4o",
			LLMModel:          "gpt-4o-mini",
			RequestTimeout:    2 * time.Minute,
			RemoteErrorLimit:  3,
			RemoteBackoffStep: 30 * time.Second,
			RemoteMaxBackoff:  5 * time.Minute,
			VisionMinInterval: time.Second,
		},

		Memory: &MemoryConfig{
			Backend:          BackendFile,
			OperationTimeout: 30 * time.Second,
			Path:             "./data/memoria_ocr.json",
			GitRepo:          "./data/memory-repo",
			S3Key:            "caia-extract/memory.json",
			S3Region:         "us-east-1",
			MongoDatabase:    "caia_extract",
			MongoCollection:  "memory",
			PostgresTable:    "correction_memory",
		},

		Processing: &ProcessingConfig{
			MaxFileSize:         50 * 1024 * 1024, // 50MB
			PDFMaxPages:         5,
			PDFDPI:              200,
			MaxImageSide:        4000,
			NameThreshold:       80,
			MedicationThreshold: 70,
			EnableEntities:      true,
			CleanOCRText:        true,
			ExtractionTimeout:   5 * time.Minute,
		},

		Server: &ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    2 * time.Minute,
			WriteTimeout:   2 * time.Minute,
			MaxRequestSize: 100 * 1024 * 1024, // 100MB
		},

		Temporal: &TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "caia-extract",
		},

		DataPaths: &DataPathsConfig{
			DataRoot:  "./data",
			LogDir:    "./logs",
			TempDir:   "./data/temp",
			UploadDir: "./data/uploads",
		},
	}
}

// ProductionPipelineConfig returns production-ready configuration
func ProductionPipelineConfig() *PipelineConfig {
	config := DefaultPipelineConfig()

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Console = false

	config.Memory.Backend = BackendGit
	config.Memory.FallbackBackend = BackendFile

	config.Temporal.Enabled = true

	return config
}

// DevelopmentPipelineConfig returns development configuration
func DevelopmentPipelineConfig() *PipelineConfig {
	config := DefaultPipelineConfig()

	config.Logging.Level = "debug"
	config.Logging.Format = "pretty"
	config.Logging.Console = true
	config.Logging.OutputFile = ""

	config.Engines.DefaultStrategy = "BALANCED"

	return config
}

// LoadPipelineConfig reads a JSON file over the defaults. An empty path
// returns the defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	config := DefaultPipelineConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// ApplyEnv overlays environment variables on the configuration
func (c *PipelineConfig) ApplyEnv() {
	setString(&c.Logging.Level, "CAIA_LOG_LEVEL")
	setString(&c.Logging.Format, "CAIA_LOG_FORMAT")

	setString(&c.Engines.DefaultStrategy, "CAIA_STRATEGY")
	setString(&c.Engines.TesseractLanguage, "CAIA_OCR_LANGUAGE")
	setString(&c.Engines.PaddleOCRURL, "PADDLEOCR_URL")
	setString(&c.Engines.EasyOCRURL, "EASYOCR_URL")
	setString(&c.Engines.OpenAIAPIKey, "OPENAI_API_KEY")
	setBool(&c.Engines.EnableLLMCleanup, "CAIA_LLM_CLEANUP")
	setBool(&c.Engines.EnableLLMEntities, "CAIA_LLM_ENTITIES")

	setString(&c.Memory.Backend, "CAIA_MEMORY_BACKEND")
	setString(&c.Memory.FallbackBackend, "CAIA_MEMORY_FALLBACK")
	setString(&c.Memory.Path, "CAIA_MEMORY_PATH")
	setString(&c.Memory.GitRepo, "CAIA_MEMORY_GIT_REPO")
	setString(&c.Memory.S3Bucket, "CAIA_MEMORY_S3_BUCKET")
	setString(&c.Memory.S3Region, "AWS_REGION")
	setString(&c.Memory.MongoURI, "CAIA_MEMORY_MONGO_URI")
	setString(&c.Memory.PostgresDSN, "CAIA_MEMORY_POSTGRES_DSN")

	setInt(&c.Server.Port, "PORT")

	setString(&c.Temporal.HostPort, "TEMPORAL_HOST")
	setBool(&c.Temporal.Enabled, "TEMPORAL_ENABLED")
}

// Validate rejects settings the pipeline cannot run with
func (c *PipelineConfig) Validate() error {
	if c.Engines == nil || c.Memory == nil || c.Processing == nil || c.Server == nil {
		return fmt.Errorf("incomplete configuration")
	}
	if !contains(knownBackends, c.Memory.Backend) {
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	if c.Memory.FallbackBackend != "" {
		if !contains(knownBackends, c.Memory.FallbackBackend) {
			return fmt.Errorf("unknown memory fallback backend %q", c.Memory.FallbackBackend)
		}
		if c.Memory.FallbackBackend == c.Memory.Backend {
			return fmt.Errorf("memory fallback backend must differ from the primary")
		}
	}
	if !contains(knownStrategies, strings.ToUpper(strings.TrimSpace(c.Engines.DefaultStrategy))) {
		return fmt.Errorf("unknown default strategy %q", c.Engines.DefaultStrategy)
	}
	if c.Processing.NameThreshold < 0 || c.Processing.NameThreshold > 100 {
		return fmt.Errorf("name threshold must be within 0..100, got %d", c.Processing.NameThreshold)
	}
	if c.Processing.MedicationThreshold < 0 || c.Processing.MedicationThreshold > 100 {
		return fmt.Errorf("medication threshold must be within 0..100, got %d", c.Processing.MedicationThreshold)
	}
	if c.Processing.PDFMaxPages < 1 {
		return fmt.Errorf("pdf max pages must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
