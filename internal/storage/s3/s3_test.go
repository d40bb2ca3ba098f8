package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/storage"
)

type fakeClient struct {
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) PutObject(_ context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, params *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) HeadObject(_ context.Context, params *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadObjectOutput{}, nil
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	store := NewWithClient(newFakeClient(), "videos")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "videos/u/v/clip.mp4", []byte("blob")))

	got, err := store.Download(ctx, "videos/u/v/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}

func TestDownloadMissingReturnsErrNotFound(t *testing.T) {
	store := NewWithClient(newFakeClient(), "videos")

	_, err := store.Download(context.Background(), "absent")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestDeleteReportsWhetherObjectExisted(t *testing.T) {
	store := NewWithClient(newFakeClient(), "videos")
	ctx := context.Background()

	removed, err := store.Delete(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, store.Upload(ctx, "present", []byte("x")))
	removed, err = store.Delete(ctx, "present")
	require.NoError(t, err)
	assert.True(t, removed)

	exists, err := store.Exists(ctx, "present")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}
