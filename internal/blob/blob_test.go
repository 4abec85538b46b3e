package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://images/raw/img_001.jpg", "images", "raw/img_001.jpg", true},
		{"s3://images/key", "images", "key", true},
		{"s3://bucket-only", "bucket-only", "", true},
		{"raw/img_001.jpg", "", "", false},
		{"/var/data/img.jpg", "", "", false},
		{"http://example.com/x", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, ok := ParseS3URI(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestLocal_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0644))

	data, err := Local{}.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)
}

func TestLocal_MissingFile(t *testing.T) {
	_, err := Local{}.Get(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestLocal_RejectsS3URI(t *testing.T) {
	_, err := Local{}.Get(context.Background(), "s3://bucket/key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no object store configured")
}
