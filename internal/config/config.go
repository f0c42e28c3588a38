package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Detector backends.
const (
	BackendONNX   = "onnx"
	BackendOpenCV = "opencv"
	BackendRemote = "remote"
)

type Config struct {
	Port                   int     `yaml:"port"`
	GatewayPort            int     `yaml:"gateway_port"`
	AIBackendURL           string  `yaml:"ai_backend_url"`
	DetectorBackend        string  `yaml:"detector_backend"`
	ModelPath              string  `yaml:"model_path"`
	ModelName              string  `yaml:"model_name"`
	OnnxLibraryPath        string  `yaml:"onnx_library_path"`
	RemoteInferenceURL     string  `yaml:"remote_inference_url"`
	ConfidenceThreshold    float64 `yaml:"confidence_threshold"`
	IoUThreshold           float64 `yaml:"iou_threshold"`
	SessionPoolSize        int     `yaml:"session_pool_size"`
	OutputDirectory        string  `yaml:"output_directory"`
	PersistArtifacts       bool    `yaml:"persist_artifacts"`
	DBPath                 string  `yaml:"db_path"`     // empty disables the history index
	LogDirectory           string  `yaml:"log_directory"`
	MaxUploadMB            int     `yaml:"max_upload_mb"`
	UpstreamTimeoutSeconds int     `yaml:"upstream_timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                   8001,
		GatewayPort:            8000,
		AIBackendURL:           "http://localhost:8001",
		DetectorBackend:        BackendONNX,
		ModelPath:              filepath.Join(".", "models", "yolov8n.onnx"),
		ModelName:              "yolov8n",
		OnnxLibraryPath:        defaultOnnxLibrary(),
		RemoteInferenceURL:     "http://localhost:5000/infer",
		ConfidenceThreshold:    0.25,
		IoUThreshold:           0.7,
		SessionPoolSize:        4,
		OutputDirectory:        filepath.Join(".", "outputs"),
		PersistArtifacts:       true,
		DBPath:                 filepath.Join(".", "data", "detections.db"),
		LogDirectory:           filepath.Join(".", "logs"),
		MaxUploadMB:            50,
		UpstreamTimeoutSeconds: 30,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables. Later sources override earlier ones.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.GatewayPort = getEnvAsInt("GATEWAY_PORT", c.GatewayPort)
	c.AIBackendURL = getEnv("AI_BACKEND_URL", c.AIBackendURL)
	c.DetectorBackend = strings.ToLower(getEnv("DETECTOR_BACKEND", c.DetectorBackend))
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelName = getEnv("MODEL_NAME", c.ModelName)
	c.OnnxLibraryPath = getEnv("ONNX_LIBRARY_PATH", c.OnnxLibraryPath)
	c.RemoteInferenceURL = getEnv("REMOTE_INFERENCE_URL", c.RemoteInferenceURL)
	c.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.IoUThreshold = getEnvAsFloat("IOU_THRESHOLD", c.IoUThreshold)
	c.SessionPoolSize = getEnvAsInt("SESSION_POOL_SIZE", c.SessionPoolSize)
	c.OutputDirectory = getEnv("OUTPUT_DIR", c.OutputDirectory)
	c.PersistArtifacts = getEnvAsBool("PERSIST_ARTIFACTS", c.PersistArtifacts)
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		c.DBPath = v
	}
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.UpstreamTimeoutSeconds = getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", c.UpstreamTimeoutSeconds)
}

// Validate checks ranges that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be in (0,1], got %v", c.IoUThreshold)
	}
	if c.SessionPoolSize <= 0 {
		return fmt.Errorf("session pool size must be positive, got %d", c.SessionPoolSize)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	switch c.DetectorBackend {
	case BackendONNX, BackendOpenCV, BackendRemote:
	default:
		return fmt.Errorf("unknown detector backend %q", c.DetectorBackend)
	}
	return nil
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func defaultOnnxLibrary() string {
	return filepath.Join(".", "third_party", "libonnxruntime.so")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
