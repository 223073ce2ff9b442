package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func newTestArchiver(client ObjectPutter) *S3Archiver {
	a := NewS3Archiver(client, "ledger-backups", "backups", slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	a.newID = func() string { return "01JNQ3V5ZB0000000000000000" }
	return a
}

// ========================================
// Encode/Decode Tests
// ========================================

func TestEncodeDecode(t *testing.T) {
	rows := []database.Row{
		{"id": int64(1), "name": "Acme", "notes": nil},
		{"id": int64(2), "name": "Globex", "notes": "vip"},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("decoded %d rows, want 2", len(got))
	}
	if got[1]["name"] != "Globex" || got[0]["notes"] != nil {
		t.Errorf("unexpected rows: %v", got)
	}
	if id, _ := got[0]["id"].(json.Number); id.String() != "1" {
		t.Errorf("id = %v, want 1", got[0]["id"])
	}
}

func TestDecode_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	rows, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("decoded %d rows, want 0", len(rows))
	}
}

// ========================================
// S3Archiver Tests
// ========================================

func TestS3Archiver_ArchiveTable(t *testing.T) {
	putter := &fakePutter{}
	a := newTestArchiver(putter)

	rows := []database.Row{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)}}
	if err := a.ArchiveTable(context.Background(), "clients_backup", rows); err != nil {
		t.Fatalf("ArchiveTable failed: %v", err)
	}

	if len(putter.inputs) != 1 {
		t.Fatalf("got %d uploads, want 1", len(putter.inputs))
	}
	in := putter.inputs[0]
	if *in.Bucket != "ledger-backups" {
		t.Errorf("Bucket = %q", *in.Bucket)
	}
	if want := "backups/clients_backup/20260304T050607Z-01JNQ3V5ZB0000000000000000.jsonl.zst"; *in.Key != want {
		t.Errorf("Key = %q, want %q", *in.Key, want)
	}
	if *in.ContentEncoding != "zstd" || *in.ContentType != ContentType {
		t.Errorf("content headers = %q/%q", *in.ContentType, *in.ContentEncoding)
	}
	if in.Metadata["rows"] != "3" || in.Metadata["table"] != "clients_backup" {
		t.Errorf("Metadata = %v", in.Metadata)
	}

	decoded, err := Decode(bytes.NewReader(putter.bodies[0]))
	if err != nil {
		t.Fatalf("uploaded body is not a valid archive: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("uploaded %d rows, want 3", len(decoded))
	}
}

func TestS3Archiver_UploadError(t *testing.T) {
	a := newTestArchiver(&fakePutter{err: errors.New("bucket gone")})

	err := a.ArchiveTable(context.Background(), "users_backup", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestS3Archiver_KeyWithoutPrefix(t *testing.T) {
	a := NewS3Archiver(&fakePutter{}, "b", "", nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	if got := a.Key("users_backup", at, "ID"); got != "users_backup/20260102T020405Z-ID.jsonl.zst" {
		t.Errorf("Key = %q", got)
	}
}

func TestS3Archiver_SameSecondArchivesDoNotCollide(t *testing.T) {
	putter := &fakePutter{}
	a := NewS3Archiver(putter, "ledger-backups", "backups", slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := a.ArchiveTable(ctx, "clients_backup", []database.Row{{"id": int64(i)}}); err != nil {
			t.Fatalf("ArchiveTable failed: %v", err)
		}
	}

	if len(putter.inputs) != 2 {
		t.Fatalf("got %d uploads, want 2", len(putter.inputs))
	}
	first, second := *putter.inputs[0].Key, *putter.inputs[1].Key
	if first == second {
		t.Errorf("both archives were written to %q", first)
	}
	for _, key := range []string{first, second} {
		if !strings.HasPrefix(key, "backups/clients_backup/20260304T050607Z-") {
			t.Errorf("Key = %q, want timestamped prefix", key)
		}
	}
}
