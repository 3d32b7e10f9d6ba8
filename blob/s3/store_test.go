package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/poiesic/lectern/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	data        []byte
	contentType string
}

type fakeClient struct {
	objects map[string]object
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]object)}
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[objectKey(in.Bucket, in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[objectKey(in.Bucket, in.Key)] = object{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, objectKey(in.Bucket, in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[objectKey(in.Bucket, in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store, err := New(client)
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "docs", "uploads/a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "docs", "uploads/a.pdf", []byte("%PDF-1.7 body"), ""))
	assert.Equal(t, "application/pdf", client.objects["docs/uploads/a.pdf"].contentType)

	exists, err = store.Exists(ctx, "docs", "uploads/a.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Get(ctx, "docs", "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))

	require.NoError(t, store.Delete(ctx, "docs", "uploads/a.pdf"))
	_, err = store.Get(ctx, "docs", "uploads/a.pdf")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_ExplicitContentType(t *testing.T) {
	client := newFakeClient()
	store, err := New(client)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "docs", "notes.md", []byte("# hi"), "text/markdown"))
	assert.Equal(t, "text/markdown", client.objects["docs/notes.md"].contentType)
}
