package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const (
	// Standard Azurite account name and key
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	// DefaultContainer is used when BlobConfig.Container is empty.
	DefaultContainer = "reports"
)

// blobClient is the subset of *azblob.Client the sink uses.
type blobClient interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobConfig configures the Azure Blob Storage sink.
type BlobConfig struct {
	// ServiceURL is the account endpoint. http:// endpoints are treated as
	// Azurite and use the emulator's shared key.
	ServiceURL string
	Container  string
}

// Blob uploads artifacts to an Azure Blob Storage container.
type Blob struct {
	client     blobClient
	serviceURL string
	container  string
	logger     *slog.Logger

	mu       sync.Mutex
	prepared bool
}

// isLocal reports whether the service URL points at a local emulator.
func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

// NewBlob builds a sink using shared key auth for Azurite and
// DefaultAzureCredential otherwise.
func NewBlob(cfg BlobConfig, logger *slog.Logger) (*Blob, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceURL == "" {
		return nil, errors.New("blob service URL is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	if isLocal(cfg.ServiceURL) {
		logger.Info("using Azurite shared key credentials for blob sink")
		cred, credErr := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("creating shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(cfg.ServiceURL, cred, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("creating default azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.ServiceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	return newBlob(client, cfg, logger), nil
}

func newBlob(client blobClient, cfg BlobConfig, logger *slog.Logger) *Blob {
	container := cfg.Container
	if container == "" {
		container = DefaultContainer
	}
	return &Blob{
		client:     client,
		serviceURL: strings.TrimRight(cfg.ServiceURL, "/"),
		container:  container,
		logger:     logger,
	}
}

// Save uploads data as a blob named name and returns its URL.
func (b *Blob) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := b.ensureContainer(ctx); err != nil {
		return "", err
	}

	if _, err := b.client.UploadBuffer(ctx, b.container, name, data, nil); err != nil {
		return "", fmt.Errorf("uploading blob %s/%s: %w", b.container, name, err)
	}

	location := b.serviceURL + "/" + b.container + "/" + url.PathEscape(name)
	b.logger.Info("uploaded report artifact", "container", b.container, "blob_name", name, "size_bytes", len(data))
	return location, nil
}

func (b *Blob) ensureContainer(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prepared {
		return nil
	}

	_, err := b.client.CreateContainer(ctx, b.container, nil)
	if err != nil {
		var azErr *azcore.ResponseError
		if !errors.As(err, &azErr) || azErr.ErrorCode != "ContainerAlreadyExists" {
			return fmt.Errorf("creating container %s: %w", b.container, err)
		}
	}
	b.prepared = true
	return nil
}
