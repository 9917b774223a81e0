package storage

import (
	"fmt"
)

type Factory struct {
	config StorageConfig
}

func NewFactory(config StorageConfig) *Factory {
	return &Factory{
		config: config,
	}
}

func (f *Factory) CreateStorage() (Storage, error) {
	switch f.config.Type {
	case StorageTypeLocal:
		basePath := f.config.LocalPath
		if basePath == "" {
			basePath = "./uploads" // Default path
		}
		return NewLocalStorage(basePath)

	case StorageTypeS3:
		if f.config.S3 == nil {
			return nil, fmt.Errorf("S3 configuration is required for S3 storage type")
		}
		if f.config.S3.Bucket == "" || f.config.S3.Region == "" {
			return nil, fmt.Errorf("S3 storage requires a bucket and region")
		}
		return NewS3Storage(*f.config.S3)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", f.config.Type)
	}
}
