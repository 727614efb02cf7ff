package catalog_test

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "valid article collection",
			input:     "linkd_articles",
			wantError: false,
		},
		{
			name:      "valid with digits",
			input:     "articles_v2",
			wantError: false,
		},
		{
			name:      "empty name",
			input:     "",
			wantError: true,
		},
		{
			name:      "uppercase letters",
			input:     "Linkd_Articles",
			wantError: true,
		},
		{
			name:      "hyphens rejected",
			input:     "linkd-articles",
			wantError: true,
		},
		{
			name:      "path traversal attempt",
			input:     "../articles",
			wantError: true,
		},
		{
			name:      "spaces rejected",
			input:     "linkd articles",
			wantError: true,
		},
		{
			name:      "too long",
			input:     "a123456789012345678901234567890123456789012345678901234567890123456789",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalog.ValidateCollectionName(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, catalog.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func validQdrantConfig() catalog.QdrantConfig {
	return catalog.QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "linkd_articles",
		VectorSize: 1536,
	}
}

func TestQdrantConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*catalog.QdrantConfig)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(*catalog.QdrantConfig) {},
			wantError: false,
		},
		{
			name:      "missing host",
			mutate:    func(c *catalog.QdrantConfig) { c.Host = "" },
			wantError: true,
		},
		{
			name:      "zero port",
			mutate:    func(c *catalog.QdrantConfig) { c.Port = 0 },
			wantError: true,
		},
		{
			name:      "port out of range",
			mutate:    func(c *catalog.QdrantConfig) { c.Port = 70000 },
			wantError: true,
		},
		{
			name:      "missing collection",
			mutate:    func(c *catalog.QdrantConfig) { c.Collection = "" },
			wantError: true,
		},
		{
			name:      "zero vector size",
			mutate:    func(c *catalog.QdrantConfig) { c.VectorSize = 0 },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validQdrantConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, catalog.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQdrantConfigApplyDefaults(t *testing.T) {
	cfg := validQdrantConfig()
	cfg.ApplyDefaults()

	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
	assert.Equal(t, 10000, cfg.ListLimit)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
}

func TestQdrantConfigApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := validQdrantConfig()
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 7
	cfg.ListLimit = 250

	cfg.ApplyDefaults()

	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 250, cfg.ListLimit)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "unavailable is transient",
			err:  status.Error(codes.Unavailable, "connection refused"),
			want: true,
		},
		{
			name: "deadline exceeded is transient",
			err:  status.Error(codes.DeadlineExceeded, "timeout"),
			want: true,
		},
		{
			name: "aborted is transient",
			err:  status.Error(codes.Aborted, "conflict"),
			want: true,
		},
		{
			name: "resource exhausted is transient",
			err:  status.Error(codes.ResourceExhausted, "rate limited"),
			want: true,
		},
		{
			name: "invalid argument is permanent",
			err:  status.Error(codes.InvalidArgument, "bad vector size"),
			want: false,
		},
		{
			name: "not found is permanent",
			err:  status.Error(codes.NotFound, "no such collection"),
			want: false,
		},
		{
			name: "permission denied is permanent",
			err:  status.Error(codes.PermissionDenied, "forbidden"),
			want: false,
		},
		{
			name: "unauthenticated is permanent",
			err:  status.Error(codes.Unauthenticated, "bad api key"),
			want: false,
		},
		{
			name: "plain error is permanent",
			err:  errors.New("something else"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, catalog.IsTransientError(tt.err))
		})
	}
}
