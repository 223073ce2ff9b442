package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeGetter struct {
	objects map[string]string
	err     error
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

// ========================================
// ParseURI Tests
// ========================================

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		bucket     string
		key        string
		wantParsed bool
	}{
		{"s3://ledgerbook/schemas/optimized.sql", "ledgerbook", "schemas/optimized.sql", true},
		{"s3://ledgerbook/a", "ledgerbook", "a", true},
		{"s3://ledgerbook", "", "", false},
		{"s3://ledgerbook/", "", "", false},
		{"s3:///key", "", "", false},
		{"/etc/optimized.sql", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, ok := ParseURI(tt.uri)
			if ok != tt.wantParsed || bucket != tt.bucket || key != tt.key {
				t.Errorf("ParseURI(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.uri, bucket, key, ok, tt.bucket, tt.key, tt.wantParsed)
			}
		})
	}
}

// ========================================
// FetchObject Tests
// ========================================

func TestFetchObject(t *testing.T) {
	g := &fakeGetter{objects: map[string]string{"b/schema.sql": "CREATE TABLE t (id INTEGER);"}}

	data, err := FetchObject(context.Background(), g, "b", "schema.sql")
	if err != nil {
		t.Fatalf("FetchObject() error = %v", err)
	}
	if string(data) != "CREATE TABLE t (id INTEGER);" {
		t.Errorf("data = %q", data)
	}
}

func TestFetchObject_Missing(t *testing.T) {
	_, err := FetchObject(context.Background(), &fakeGetter{}, "b", "missing.sql")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("error = %v, want ErrObjectNotFound", err)
	}
}

func TestFetchObject_Error(t *testing.T) {
	_, err := FetchObject(context.Background(), &fakeGetter{err: errors.New("connection reset")}, "b", "k")
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		t.Errorf("error = %v, want transport error", err)
	}
}
