package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitehq/aimlgw/internal/config"
)

// fakePresigner captures presign calls and returns canned URLs.
type fakePresigner struct {
	putInput *s3.PutObjectInput
	getInput *s3.GetObjectInput
	expires  time.Duration
	err      error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput,
	optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.putInput = params
	f.expires = presignExpiry(optFns)
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/put"}, nil
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput,
	optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.getInput = params
	f.expires = presignExpiry(optFns)
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/get"}, nil
}

func presignExpiry(optFns []func(*s3.PresignOptions)) time.Duration {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts.Expires
}

// fakeObjects captures delete calls.
type fakeObjects struct {
	deleted []string
	err     error
}

func (f *fakeObjects) DeleteObject(_ context.Context, params *s3.DeleteObjectInput,
	_ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if params.Key != nil {
		f.deleted = append(f.deleted, *params.Key)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.DeleteObjectOutput{}, nil
}

func newFakeService(t *testing.T, presigner presignAPI, objects objectAPI) *Service {
	t.Helper()

	svc, err := NewService(context.Background(),
		&config.StorageConfig{Bucket: "test-bucket", URLExpiry: config.Duration(15 * time.Minute)},
		WithPresignClient(presigner),
		WithObjectClient(objects),
	)
	require.NoError(t, err)
	return svc
}

func TestPresignUpload(t *testing.T) {
	t.Parallel()

	presigner := &fakePresigner{}
	svc := newFakeService(t, presigner, &fakeObjects{})

	url, err := svc.PresignUpload(context.Background(), "files/user_1/abc_report.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/put", url)

	require.NotNil(t, presigner.putInput)
	assert.Equal(t, "test-bucket", *presigner.putInput.Bucket)
	assert.Equal(t, "files/user_1/abc_report.pdf", *presigner.putInput.Key)
	assert.Equal(t, "application/pdf", *presigner.putInput.ContentType)
	assert.Equal(t, 15*time.Minute, presigner.expires)
}

func TestPresignDownload(t *testing.T) {
	t.Parallel()

	presigner := &fakePresigner{}
	svc := newFakeService(t, presigner, &fakeObjects{})

	url, err := svc.PresignDownload(context.Background(), "files/user_1/abc_report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/get", url)
	require.NotNil(t, presigner.getInput)
	assert.Equal(t, "files/user_1/abc_report.pdf", *presigner.getInput.Key)
}

func TestPresignErrorsWrapped(t *testing.T) {
	t.Parallel()

	presigner := &fakePresigner{err: errors.New("signing broke")}
	svc := newFakeService(t, presigner, &fakeObjects{})

	_, err := svc.PresignUpload(context.Background(), "k", "text/plain")
	assert.ErrorContains(t, err, "failed to presign upload for k")

	_, err = svc.PresignDownload(context.Background(), "k")
	assert.ErrorContains(t, err, "failed to presign download for k")
}

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{}
	svc := newFakeService(t, &fakePresigner{}, objects)

	require.NoError(t, svc.DeleteObject(context.Background(), "files/user_1/doomed.txt"))
	assert.Equal(t, []string{"files/user_1/doomed.txt"}, objects.deleted)

	objects.err = errors.New("access denied")
	assert.ErrorContains(t, svc.DeleteObject(context.Background(), "k"), "failed to delete k")
}

func TestNewService_RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewService(context.Background(), &config.StorageConfig{})
	assert.Error(t, err)

	_, err = NewService(context.Background(), nil)
	assert.Error(t, err)
}

func TestIsSupportedFileType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileType string
		want     bool
	}{
		{name: "pdf", fileType: "pdf", want: true},
		{name: "uppercase", fileType: "PDF", want: true},
		{name: "whitespace", fileType: " docx ", want: true},
		{name: "webpage", fileType: "webpage", want: true},
		{name: "unsupported", fileType: "exe", want: false},
		{name: "empty", fileType: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsSupportedFileType(tt.fileType))
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{name: "pdf", fileName: "report.pdf", want: "application/pdf"},
		{name: "txt", fileName: "notes.TXT", want: "text/plain"},
		{name: "docx", fileName: "doc.docx", want: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{name: "unknown extension", fileName: "blob.weird", want: "application/octet-stream"},
		{name: "no extension", fileName: "README", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ContentTypeFor(tt.fileName))
		})
	}
}

func TestUniqueFilename(t *testing.T) {
	t.Parallel()

	first := UniqueFilename("report.pdf")
	second := UniqueFilename("report.pdf")

	assert.True(t, strings.HasPrefix(first, "report_"))
	assert.True(t, strings.HasSuffix(first, ".pdf"))
	assert.Len(t, first, len("report_")+8+len(".pdf"))
	assert.NotEqual(t, first, second)

	// No extension: the token lands at the end.
	bare := UniqueFilename("README")
	assert.True(t, strings.HasPrefix(bare, "README_"))
	assert.Len(t, bare, len("README_")+8)
}

func TestSupportedFileTypes(t *testing.T) {
	t.Parallel()

	types := SupportedFileTypes()
	assert.Equal(t, []string{"pdf", "txt", "doc", "docx", "webpage"}, types)
}
