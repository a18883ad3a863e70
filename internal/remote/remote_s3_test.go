package remote

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket implementing s3API
type fakeS3 struct {
	objects map[string][]byte
	deletes []string
	probes  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	etag := fmt.Sprintf("\"%x\"", md5.Sum(data))
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), ETag: aws.String(etag)}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if in.MaxKeys != nil {
		f.probes++
	}
	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)

	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	for _, key := range keys {
		if delimiter != "" {
			rest := strings.TrimPrefix(key, prefix)
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(f.objects[key])))})
		if in.MaxKeys != nil && int32(len(out.Contents)) >= *in.MaxKeys {
			break
		}
	}
	return out, nil
}

func TestS3Remote_CreateDirectoryWritesMarkers(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	r := NewS3Remote(fake, "bucket")

	require.NoError(t, r.CreateDirectory(ctx, "/backup/a/b/"))
	assert.Contains(t, fake.objects, "backup/")
	assert.Contains(t, fake.objects, "backup/a/")
	assert.Contains(t, fake.objects, "backup/a/b/")

	ok, err := r.Exists(ctx, "/backup/a/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, "/nope/")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Exists(ctx, "/")
	require.NoError(t, err)
	assert.True(t, ok, "bucket root always exists")
}

func TestS3Remote_UploadAndPolicies(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	r := NewS3Remote(fake, "bucket")
	require.NoError(t, r.CreateDirectory(ctx, "/dst/"))
	local := writeLocal(t, t.TempDir(), "a.txt", "hello world")

	transferred, err := r.Upload(ctx, &UploadParams{
		LocalPath:    local,
		RemotePath:   "/dst/a.txt",
		ExistsPolicy: ExistsSkip,
		VerifyPolicy: VerifyChecksum | VerifyThrow,
	})
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, "hello world", string(fake.objects["dst/a.txt"]))

	transferred, err = r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt", ExistsPolicy: ExistsSkip})
	require.NoError(t, err)
	assert.False(t, transferred)

	_, err = r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt", ExistsPolicy: ExistsAppend})
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)

	fake.objects["dst/a.txt"] = []byte("hello")
	transferred, err = r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt", ExistsPolicy: ExistsResume})
	require.NoError(t, err)
	assert.True(t, transferred, "resume without append support re-uploads the whole file")
	assert.Equal(t, "hello world", string(fake.objects["dst/a.txt"]))
}

func TestS3Remote_UploadRequiresParentMarker(t *testing.T) {
	ctx := context.Background()
	r := NewS3Remote(newFakeS3(), "bucket")
	local := writeLocal(t, t.TempDir(), "a.txt", "x")

	_, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt"})
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/a.txt"})
	assert.NoError(t, err, "the bucket root is always a valid parent")
}

func TestS3Remote_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["root/"] = nil
	fake.objects["root/a.txt"] = []byte("a")
	fake.objects["root/sub/"] = nil
	fake.objects["root/sub/b.txt"] = []byte("bb")
	fake.objects["other/c.txt"] = []byte("c")
	r := NewS3Remote(fake, "bucket")

	entries, err := r.List(ctx, "/root/", true)
	require.NoError(t, err)
	got := map[string]EntryKind{}
	for _, e := range entries {
		got[e.FullPath] = e.Kind
	}
	assert.Equal(t, map[string]EntryKind{
		"/root/a.txt":     EntryFile,
		"/root/sub/":      EntryDirectory,
		"/root/sub/b.txt": EntryFile,
	}, got)

	shallow, err := r.List(ctx, "/root/", false)
	require.NoError(t, err)
	got = map[string]EntryKind{}
	for _, e := range shallow {
		got[e.FullPath] = e.Kind
	}
	assert.Equal(t, map[string]EntryKind{
		"/root/a.txt": EntryFile,
		"/root/sub/":  EntryDirectory,
	}, got)

	require.NoError(t, r.Delete(ctx, "/root/a.txt"))
	assert.Equal(t, []string{"root/a.txt"}, fake.deletes)
	assert.NotContains(t, fake.objects, "root/a.txt")
}

func TestS3Remote_DeleteListedStrayKey(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["backup/"] = nil
	fake.objects["backup/a.txt"] = []byte("a")
	fake.objects["backup//a.txt"] = []byte("stray")
	r := NewS3Remote(fake, "bucket")

	entries, err := r.List(ctx, "/backup/", true)
	require.NoError(t, err)
	var stray *Entry
	for _, e := range entries {
		if e.FullPath == "/backup//a.txt" {
			stray = e
		}
	}
	require.NotNil(t, stray, "listing keeps the key as stored")

	require.NoError(t, r.Delete(ctx, stray.FullPath))
	assert.Equal(t, []string{"backup//a.txt"}, fake.deletes)
	assert.Contains(t, fake.objects, "backup/a.txt")
	assert.NotContains(t, fake.objects, "backup//a.txt")
}

func TestS3Remote_DirectoryCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["implicit/a.txt"] = []byte("a")
	r := NewS3Remote(fake, "bucket")

	ok, err := r.Exists(ctx, "/implicit/")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Exists(ctx, "/implicit/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fake.probes, "second lookup is served from the cache")

	require.NoError(t, r.CreateDirectory(ctx, "/made/sub"))
	ok, err = r.Exists(ctx, "/made/sub/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fake.probes, "created markers are cached")

	// deleting the only object under an unmarked prefix removes the directory
	require.NoError(t, r.Delete(ctx, "/implicit/a.txt"))
	ok, err = r.Exists(ctx, "/implicit/")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, fake.probes)
}

func TestObjectKeys(t *testing.T) {
	tests := []struct {
		in        string
		wantKey   string
		wantPrefix string
	}{
		{"/", "", ""},
		{"", "", ""},
		{"/a/b/", "a/b", "a/b/"},
		{"a\\b\\c.txt", "a/b/c.txt", "a/b/c.txt/"},
		{"//a//b", "a/b", "a/b/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantKey, objectKey(tt.in), tt.in)
		assert.Equal(t, tt.wantPrefix, prefixKey(tt.in), tt.in)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.False(t, isNotFound(fmt.Errorf("boom")))
}
