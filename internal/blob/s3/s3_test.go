package s3blob

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "https://localhost:9443", normaliseEndpoint("localhost:9443", true))
	assert.Equal(t, "http://127.0.0.1:9000", normaliseEndpoint("http://127.0.0.1:9000", true))
}

type statusErr struct{ code int }

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(fmt.Errorf("op: %w", statusErr{404})))
	assert.False(t, isNotFound(statusErr{403}))
	assert.False(t, isNotFound(errors.New("timeout")))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a/b.csv.gz", (&Store{}).objectKey("a/b.csv.gz"))
	assert.Equal(t, "archive/a/b.csv.gz", (&Store{prefix: "archive"}).objectKey("a/b.csv.gz"))
}
