package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"causeconnect/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("logos", "brand.PNG", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "logos/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	key, err = ObjectKey("../../etc", "photo.jpeg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "etc/"))

	_, err = ObjectKey("logos", "run.exe", "application/x-msdownload")
	assert.True(t, types.IsKind(err, types.KindValidation))

	_, err = ObjectKey("logos", "logo.gif", "image/png")
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	url, err := s.UploadFile(ctx, "proofs", "a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, LocalPrefix+"proofs/"))

	rc, err := s.Open(ctx, url)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.DeleteFile(ctx, url))
	_, err = s.Open(ctx, url)
	assert.Error(t, err)

	// deleting twice is fine
	assert.NoError(t, s.DeleteFile(ctx, url))
}

func TestLocalStorageRejectsOversizedUpload(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	_, err = s.UploadFile(context.Background(), "logos", "big.png", "image/png", bytes.NewReader(make([]byte, MaxUploadBytes+1)))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidation))

	entries, err := os.ReadDir(filepath.Join(root, "logos"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorageRejectsForeignURLs(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "https://example.com/logo.png")
	assert.ErrorIs(t, err, ErrForeignURL)

	_, err = s.Open(context.Background(), LocalPrefix+"../../secret")
	assert.ErrorIs(t, err, ErrForeignURL)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, assert.AnError
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := NewS3Storage(fake, "totes", "https://cdn.example.com/")

	url, err := s.UploadFile(ctx, "logos", "logo.webp", "image/webp", strings.NewReader("webp"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://cdn.example.com/logos/"))

	key := strings.TrimPrefix(url, "https://cdn.example.com/")
	assert.Equal(t, "image/webp", fake.types[key])

	rc, err := s.Open(ctx, url)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "webp", string(data))

	_, err = s.Open(ctx, "/uploads/logos/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)

	require.NoError(t, s.DeleteFile(ctx, url))
	assert.Empty(t, fake.objects)
}

func TestS3StorageDefaultBaseURL(t *testing.T) {
	s := NewS3Storage(nil, "totes", "")
	assert.Equal(t, "https://totes.s3.amazonaws.com/a/b.png", s.PublicURL("a/b.png"))
}
