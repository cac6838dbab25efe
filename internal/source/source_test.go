package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/joyfill/joydoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeS3 keeps objects in memory, keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	buckets map[string]bool
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, buckets: map[string]bool{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "not found"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NotImplemented"}
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NotImplemented"}
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NotImplemented"}
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

const minimalJSON = `{"_id":"doc1","files":[{"_id":"file1","pages":[],"pageOrder":[]}],"fields":[]}`

const minimalYAML = `
_id: doc1
files:
  - _id: file1
    pages: []
    pageOrder: []
fields:
  - _id: f1
    file: file1
    type: number
    value: 42
`

func newSource(client S3Client) *Source {
	return New(joydoc.DefaultConfig().Source, client, zap.NewNop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSource_LoadFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	src := newSource(nil)

	doc, err := src.Load(ctx, writeFile(t, dir, "doc.json", minimalJSON))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, doc.Format)
	assert.Equal(t, "doc1", doc.ID())
	assert.Equal(t, len(minimalJSON), doc.Size)
	assert.True(t, joydoc.ValidateDocument(doc.Tree).Valid)

	doc, err = src.Load(ctx, writeFile(t, dir, "doc.yaml", minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, doc.Format)
	value := doc.Tree.(map[string]any)["fields"].([]any)[0].(map[string]any)["value"]
	assert.Equal(t, 42.0, value)
	assert.True(t, joydoc.ValidateDocument(doc.Tree).Valid)

	_, err = src.Load(ctx, filepath.Join(dir, "missing.json"))
	assert.True(t, joydoc.IsNotFoundError(err))

	_, err = src.Load(ctx, writeFile(t, dir, "broken.json", `{"files":`))
	assert.True(t, joydoc.IsDecodeError(err))
}

func TestSource_LoadStdin(t *testing.T) {
	src := newSource(nil).WithStdin(strings.NewReader(minimalYAML))
	doc, err := src.Load(context.Background(), Stdin)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, doc.Format)
	assert.Equal(t, Stdin, doc.Location)

	src.WithStdin(strings.NewReader("  " + minimalJSON))
	doc, err = src.Load(context.Background(), Stdin)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, doc.Format)
}

func TestSource_SizeLimit(t *testing.T) {
	cfg := joydoc.DefaultConfig().Source
	cfg.MaxDocumentBytes = 10
	src := New(cfg, nil, nil).WithStdin(strings.NewReader(minimalJSON))

	_, err := src.Load(context.Background(), Stdin)
	require.Error(t, err)
	assert.True(t, joydoc.IsSourceError(err))
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

func TestSource_LoadS3(t *testing.T) {
	client := newFakeS3()
	client.objects["docs/forms/doc.json"] = []byte(minimalJSON)
	src := newSource(client)
	ctx := context.Background()

	doc, err := src.Load(ctx, "s3://docs/forms/doc.json")
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.ID())

	_, err = src.Load(ctx, "s3://docs/forms/other.json")
	assert.True(t, joydoc.IsNotFoundError(err))

	_, err = src.Load(ctx, "s3://docs")
	assert.Error(t, err)

	client.getErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = src.Load(ctx, "s3://docs/forms/doc.json")
	assert.True(t, joydoc.IsSourceError(err))

	_, err = newSource(nil).Load(ctx, "s3://docs/forms/doc.json")
	assert.True(t, joydoc.IsSourceError(err))
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bucket/a/b/c.json")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b/c.json", key)

	for _, bad := range []string{"bucket/key", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("a.YML", []byte("{}")))
	assert.Equal(t, FormatJSON, DetectFormat("s3://b/doc.json", []byte("a: 1")))
	assert.Equal(t, FormatJSON, DetectFormat(Stdin, []byte("\n [1]")))
	assert.Equal(t, FormatYAML, DetectFormat(Stdin, []byte("a: 1")))
}

func TestDecodeYAML(t *testing.T) {
	tree, err := Decode([]byte("a:\n  1: x\n  b: [1, 2.5, true, null]\nwhen: 2024-01-02\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a":    map[string]any{"1": "x", "b": []any{1.0, 2.5, true, nil}},
		"when": "2024-01-02",
	}, tree)

	_, err = Decode([]byte("a: [1"), FormatYAML)
	assert.True(t, joydoc.IsDecodeError(err))
}

func TestDecodeYAML_KeepsScalarText(t *testing.T) {
	src := `
created: 2024-01-02T10:30:00.5Z
day: 2024-01-02
quoted: "2024-01-02"
tagged: !!timestamp 2001-12-14
`
	tree, err := Decode([]byte(src), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"created": "2024-01-02T10:30:00.5Z",
		"day":     "2024-01-02",
		"quoted":  "2024-01-02",
		"tagged":  "2001-12-14",
	}, tree)
}

func TestDecodeYAML_AliasesAndMerge(t *testing.T) {
	src := `
base: &base
  layout: grid
  cols: 24
page:
  <<: *base
  cols: 12
  _id: p1
copy: *base
`
	tree, err := Decode([]byte(src), FormatYAML)
	require.NoError(t, err)
	doc := tree.(map[string]any)
	assert.Equal(t, map[string]any{"layout": "grid", "cols": 12.0, "_id": "p1"}, doc["page"])
	assert.Equal(t, map[string]any{"layout": "grid", "cols": 24.0}, doc["copy"])

	empty, err := Decode([]byte(""), FormatYAML)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Decode([]byte("a: &x\n  b: *x\n"), FormatYAML)
	assert.True(t, joydoc.IsDecodeError(err))
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", minimalJSON)
	writeFile(t, dir, "a.yaml", minimalYAML)
	writeFile(t, dir, "nested/c.yml", minimalYAML)
	writeFile(t, dir, "notes.txt", "skip")

	out, err := Expand([]string{Stdin, dir, "s3://b/k", "plain.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		Stdin,
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "nested", "c.yml"),
		"s3://b/k",
		"plain.json",
	}, out)
}

func TestPublisher(t *testing.T) {
	client := newFakeS3()
	p := NewPublisher(client)
	ctx := context.Background()

	require.NoError(t, p.EnsureBucket(ctx, "artifacts"))
	assert.True(t, client.buckets["artifacts"])
	require.NoError(t, p.EnsureBucket(ctx, "artifacts"))

	require.NoError(t, p.Publish(ctx, "s3://artifacts/schema/joydoc.json", []byte(`{"a":1}`), "application/json"))
	assert.Equal(t, `{"a":1}`, string(client.objects["artifacts/schema/joydoc.json"]))
	assert.Equal(t, "application/json", client.types["artifacts/schema/joydoc.json"])

	assert.Error(t, p.Publish(ctx, "artifacts/schema.json", nil, "application/json"))
}
