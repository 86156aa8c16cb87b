package domain

// Webhook event types understood by the receiving system.
const (
	WebhookFileValidated = "file:validated"
	WebhookFileDeleted   = "file:deleted"
)

// Reasons attached to file:deleted notifications.
const (
	DeleteReasonExpired  = "expired"
	DeleteReasonInfected = "infected"
)

// FileValidated is the data of a file:validated webhook.
type FileValidated struct {
	Key    string `json:"key"`
	Bucket string `json:"bucket,omitempty"`
	Safe   bool   `json:"safe"`
	Virus  string `json:"virus,omitempty"`
}

// NewFileValidated builds the webhook data for a scan verdict.
func NewFileValidated(bucket, key string, result ScanResult) FileValidated {
	return FileValidated{
		Key:    key,
		Bucket: bucket,
		Safe:   !result.Infected,
		Virus:  result.Virus,
	}
}

// FileDeleted is the data of a file:deleted webhook. The batch fields are
// flattened into the payload.
type FileDeleted struct {
	DeleteBatch
	Reason string `json:"reason,omitempty"`
}
