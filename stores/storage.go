package stores

import (
	"docsync-server/config"
	"docsync-server/core"
	"docsync-server/stores/aws"
	"docsync-server/stores/filesystem"
	"docsync-server/stores/memory"
	"docsync-server/stores/relational"
	"docsync-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetBlobStore selects the durable store for document snapshots and
// published artifacts.
func GetBlobStore(cfg *config.Config) core.BlobStore {
	var store core.BlobStore

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store = aws.NewStore(cfg.S3BucketName, cfg.AWSRegion)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// GetCredentialStore selects the store backing authorization and renames.
func GetCredentialStore(cfg *config.Config) core.CredentialStore {
	switch cfg.CredentialDriver {
	case "mysql", "postgres", "sqlite":
		store, err := relational.NewStore(cfg.CredentialDriver, cfg.CredentialDSN, cfg.AuthTimeout)
		if err != nil {
			logrus.WithError(err).WithField("driver", cfg.CredentialDriver).Fatal("Failed to open credential store")
		}
		return store
	default:
		logrus.Warn("Using in-memory credential store; every connection is denied until credentials are seeded")
		return memory.NewStore()
	}
}
