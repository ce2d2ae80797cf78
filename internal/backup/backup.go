// Package backup snapshots the SQLite database, encrypts the copy with a
// passphrase-derived key, and uploads it to S3-compatible storage on a daily
// schedule.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. An empty passphrase or missing
// S3 credentials disable backups entirely.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	Hour       int
}

// Manager runs scheduled encrypted snapshots of the database file.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	clock   *daykey.Clock
	logger  *slog.Logger
	client  s3Client

	lastRunDay string
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, clock *daykey.Clock, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		clock:   clock,
		logger:  logger,
	}
	if m.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has everything it needs to run.
func (m *Manager) Enabled() bool {
	return m.cfg.Passphrase != "" &&
		m.cfg.S3.Bucket != "" &&
		m.cfg.S3.AccessKey != "" &&
		m.cfg.S3.SecretKey != ""
}

// Start begins the scheduled backup loop. No-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// checkSchedule runs one snapshot per day once the configured hour passes.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.clock.Now()
	today := m.clock.Today()

	if now.Hour() < m.cfg.Hour {
		return
	}

	m.mu.Lock()
	if m.lastRunDay == today {
		m.mu.Unlock()
		return
	}
	m.lastRunDay = today
	m.mu.Unlock()

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
}

// RunNow takes a snapshot immediately: checkpoint the WAL, copy the database
// file, encrypt the copy, and upload it. The upload retries with fibonacci
// backoff; the backup record tracks the outcome.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	if !m.Enabled() {
		return 0, fmt.Errorf("backups not configured")
	}

	ts := m.clock.Now().UTC()
	objectKey := fmt.Sprintf("ember/%s/ember-%s.db.enc", ts.Format("2006/01"), ts.Format("20060102T150405Z"))

	record, err := m.backups.Create(objectKey)
	if err != nil {
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.snapshot(ctx, record.ID, objectKey)
	if err != nil {
		if markErr := m.backups.MarkFailed(record.ID, err.Error()); markErr != nil {
			m.logger.Error("mark backup failed", "error", markErr)
		}
		return 0, err
	}

	if err := m.backups.MarkSuccess(record.ID, size); err != nil {
		return 0, fmt.Errorf("mark backup success: %w", err)
	}
	m.logger.Info("backup complete", "backup_id", record.ID, "key", objectKey, "bytes", size)
	return record.ID, nil
}

func (m *Manager) snapshot(ctx context.Context, recordID int64, objectKey string) (int64, error) {
	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("ember-backup-%d.db", recordID))
	encFile := filepath.Join(tmpDir, fmt.Sprintf("ember-backup-%d.db.enc", recordID))
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// Checkpoint WAL so the main file holds a consistent snapshot.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, fmt.Errorf("wal checkpoint: %w", err)
	}

	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return 0, fmt.Errorf("copy database: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return 0, err
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase, salt); err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	size, err := m.upload(ctx, encFile, objectKey)
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	return size, nil
}

// upload puts the encrypted file to S3, retrying transient failures.
func (m *Manager) upload(ctx context.Context, encFile, objectKey string) (int64, error) {
	stat, err := os.Stat(encFile)
	if err != nil {
		return 0, fmt.Errorf("stat encrypted file: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		f, err := os.Open(encFile)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(objectKey),
			Body:          f,
			ContentLength: aws.Int64(stat.Size()),
		})
		if err != nil {
			m.logger.Warn("backup upload attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Restore downloads a backup, decrypts it, validates integrity, and replaces
// the database file. The process exits afterwards; the supervisor restarts it
// against the restored database.
func (m *Manager) Restore(ctx context.Context, backupID int64) error {
	if !m.Enabled() {
		return fmt.Errorf("backups not configured")
	}

	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return fmt.Errorf("backup not found")
	}

	tmpDir := os.TempDir()
	encFile := filepath.Join(tmpDir, fmt.Sprintf("ember-restore-%d.db.enc", backupID))
	decFile := filepath.Join(tmpDir, fmt.Sprintf("ember-restore-%d.db", backupID))
	defer os.Remove(encFile)
	defer os.Remove(decFile)

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	outFile, err := os.Create(encFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(outFile, result.Body); err != nil {
		outFile.Close()
		return fmt.Errorf("write downloaded file: %w", err)
	}
	outFile.Close()

	if err := DecryptFile(encFile, decFile, m.cfg.Passphrase); err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmpDB, err := sql.Open("sqlite", decFile)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	var integrity string
	if err := tmpDB.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		tmpDB.Close()
		return fmt.Errorf("integrity check: %w", err)
	}
	tmpDB.Close()
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	if err := copyFile(decFile, m.cfg.DBPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}

	// Stale WAL/SHM would shadow the restored file.
	os.Remove(m.cfg.DBPath + "-wal")
	os.Remove(m.cfg.DBPath + "-shm")

	m.logger.Info("restore complete, exiting for restart")
	os.Exit(0)
	return nil // unreachable
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
