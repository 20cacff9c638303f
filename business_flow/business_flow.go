package businessflow

import (
	"github.com/google/uuid"

	"github.com/podscale/adops/models"
)

// ClientMetadata carries request-scoped client details into flows for audit trails.
type ClientMetadata struct {
	IP            string `json:"ip"`
	UserAgent     string `json:"user_agent"`
	RequestID     string `json:"request_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ip, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IP:        ip,
		UserAgent: userAgent,
	}
}

// correlationID returns the request correlation ID, minting one when absent.
func correlationID(meta *ClientMetadata) string {
	if meta != nil && meta.CorrelationID != "" {
		return meta.CorrelationID
	}
	return uuid.New().String()
}

// guardPartition rejects tenant operations whose partition fails validation
// before any query is issued.
func guardPartition(p models.Partition) error {
	if !p.Valid() {
		return NewBusinessError(ErrCodeSchemaViolation, "invalid tenant schema", ErrSchemaViolation)
	}
	return nil
}
