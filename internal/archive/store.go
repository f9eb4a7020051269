package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/espacoamar/amanda-backend/internal/conversation"
	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TranscriptRecord is one archived WhatsApp conversation. Kept for funnel
// review and for tuning Amanda's prompts.
type TranscriptRecord struct {
	LeadID       string                     `json:"leadId"`
	Phone        string                     `json:"phone"`
	Messages     []conversation.ChatMessage `json:"messages"`
	MessageCount int                        `json:"messageCount"`
	Outcome      string                     `json:"outcome"`
	IntentScore  int                        `json:"intentScore"`
	Mode         string                     `json:"mode"`
	ArchivedAt   time.Time                  `json:"archivedAt"`
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	LeadID       string `json:"leadId"`
	S3Key        string `json:"s3Key"`
	Outcome      string `json:"outcome"`
	MessageCount int    `json:"messageCount"`
	ArchivedAt   string `json:"archivedAt"`
}

// Store archives conversation transcripts to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are
// no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled reports whether archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveTranscript writes a transcript as JSON to S3 and appends to the
// monthly manifest. The phone number is masked before leaving the system.
func (s *Store) ArchiveTranscript(ctx context.Context, record *TranscriptRecord) error {
	if !s.Enabled() {
		return nil
	}

	record.Phone = MaskPhone(record.Phone)
	record.MessageCount = len(record.Messages)
	if record.ArchivedAt.IsZero() {
		record.ArchivedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal transcript: %w", err)
	}

	at := record.ArchivedAt
	s3Key := fmt.Sprintf("transcripts/v1/by-date/%d/%02d/%02d/%s.json",
		at.Year(), at.Month(), at.Day(), record.LeadID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("transcript archived",
		"lead_id", record.LeadID,
		"s3_key", s3Key,
		"message_count", record.MessageCount,
		"outcome", record.Outcome,
	)

	entry := ManifestEntry{
		LeadID:       record.LeadID,
		S3Key:        s3Key,
		Outcome:      record.Outcome,
		MessageCount: record.MessageCount,
		ArchivedAt:   at.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, entry, at); err != nil {
		// The transcript itself is already safe.
		s.logger.Warn("manifest append failed", "error", err, "lead_id", record.LeadID)
	}
	return nil
}

// appendManifest appends a JSONL line to the monthly manifest. S3 has no
// append, so read-modify-write.
func (s *Store) appendManifest(ctx context.Context, entry ManifestEntry, at time.Time) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	manifestKey := fmt.Sprintf("transcripts/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err == nil {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// ArchiveConversation adapts a lead and its transcript into a record. It
// satisfies conversation.TranscriptArchiver.
func (s *Store) ArchiveConversation(ctx context.Context, lead *leads.Lead, history []conversation.ChatMessage, outcome string) error {
	if !s.Enabled() {
		return nil
	}
	return s.ArchiveTranscript(ctx, &TranscriptRecord{
		LeadID:      lead.ID,
		Phone:       lead.Phone,
		Messages:    history,
		Outcome:     outcome,
		IntentScore: lead.Qualification.IntentScore,
		Mode:        lead.Qualification.ConversationMode,
	})
}

var _ conversation.TranscriptArchiver = (*Store)(nil)

// MaskPhone keeps the country code and last two digits, hiding the rest.
func MaskPhone(phone string) string {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) <= 4 {
		return phone
	}
	masked := digits[:2] + strings.Repeat("*", len(digits)-4) + digits[len(digits)-2:]
	if strings.HasPrefix(phone, "+") {
		return "+" + masked
	}
	return masked
}
