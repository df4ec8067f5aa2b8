package storage

import "kino/internal/ports"

// Provider is the storage contract shared by API and worker. Alias to
// ports.StorageProvider to keep call-sites simple.
type Provider = ports.StorageProvider
