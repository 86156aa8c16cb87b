package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService = "service"
	FieldWorker  = "worker"

	// Queue message
	FieldMessageID    = "message_id"
	FieldReceiveCount = "receive_count"
	FieldQueue        = "queue"
	FieldBatchSize    = "batch_size"
	FieldFailed       = "failed"

	// Object
	FieldBucket = "bucket"
	FieldKey    = "key"
)
