package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/emberhabit/ember/internal/database"
	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putFails int
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putFails > 0 {
		m.putFails--
		return nil, errors.New("transient upload failure")
	}
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *store.BackupStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ember.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backups := store.NewBackupStore(db)
	clock := daykey.NewFixedClock(time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC))
	m := NewManager(Config{
		S3:         S3Config{Bucket: "ember-backups", AccessKey: "key", SecretKey: "secret", Region: "auto"},
		DBPath:     dbPath,
		Passphrase: "correct horse battery staple",
		Hour:       3,
	}, db, backups, clock, slog.New(slog.DiscardHandler))

	mock := newMockS3()
	m.client = mock
	return m, mock, backups
}

func TestManagerEnabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.New(slog.DiscardHandler))
	if m.Enabled() {
		t.Error("empty config should be disabled")
	}

	m2 := NewManager(Config{
		S3:         S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"},
		Passphrase: "p",
	}, nil, nil, nil, slog.New(slog.DiscardHandler))
	if !m2.Enabled() {
		t.Error("full config should be enabled")
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, mock, backups := setupManager(t)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	record, err := backups.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != "success" {
		t.Errorf("status = %q, want success", record.Status)
	}
	if record.SizeBytes == 0 {
		t.Error("expected non-zero size")
	}

	mock.mu.Lock()
	data, ok := mock.objects[record.ObjectKey]
	mock.mu.Unlock()
	if !ok {
		t.Fatalf("no object uploaded at %q", record.ObjectKey)
	}

	// The uploaded bytes decrypt back to a valid snapshot.
	dir := t.TempDir()
	encPath := filepath.Join(dir, "got.db.enc")
	decPath := filepath.Join(dir, "got.db")
	if err := os.WriteFile(encPath, data, 0600); err != nil {
		t.Fatalf("write downloaded object: %v", err)
	}
	if err := DecryptFile(encPath, decPath, "correct horse battery staple"); err != nil {
		t.Fatalf("decrypt uploaded snapshot: %v", err)
	}
	decrypted, _ := os.ReadFile(decPath)
	if len(decrypted) == 0 {
		t.Error("decrypted snapshot is empty")
	}
}

func TestRunNowRetriesTransientUploadFailures(t *testing.T) {
	m, mock, backups := setupManager(t)
	mock.putFails = 2

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now with transient failures: %v", err)
	}
	record, _ := backups.GetByID(id)
	if record.Status != "success" {
		t.Errorf("status = %q, want success after retries", record.Status)
	}
}

func TestRunNowMarksFailure(t *testing.T) {
	m, mock, backups := setupManager(t)
	// More failures than the retry budget allows.
	mock.putFails = 10

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error when upload keeps failing")
	}

	records, err := backups.List(10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Status != "failed" {
		t.Errorf("records = %+v, want one failed record", records)
	}
}

func TestRunNowDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.New(slog.DiscardHandler))
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Error("expected error from disabled manager")
	}
}

func TestCheckScheduleOncePerDay(t *testing.T) {
	m, mock, _ := setupManager(t)

	// Clock is at 04:00, past the 03:00 schedule.
	m.checkSchedule(context.Background())
	m.checkSchedule(context.Background())

	mock.mu.Lock()
	count := len(mock.objects)
	mock.mu.Unlock()
	if count != 1 {
		t.Errorf("uploaded %d snapshots, want 1 per day", count)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m, _, _ := setupManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.New(slog.DiscardHandler))

	m.Start(context.Background()) // no-op for disabled manager
	m.Stop()
}
