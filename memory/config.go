package memory

import "path/filepath"

// DefaultFileName is the entry document name inside an agent's memory
// directory.
const DefaultFileName = "brain.json"

// Config holds entry store initialization parameters.
type Config struct {
	FileName string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
}

// DefaultConfig returns the default entry store configuration.
func DefaultConfig() Config {
	return Config{FileName: DefaultFileName}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.FileName != "" {
		c.FileName = source.FileName
	}
}

// NewStore creates the file-backed Store for the memory directory dir.
func NewStore(cfg *Config, dir string, opts ...FileStoreOption) *FileStore {
	name := cfg.FileName
	if name == "" {
		name = DefaultFileName
	}
	return NewFileStore(filepath.Join(dir, name), opts...)
}
