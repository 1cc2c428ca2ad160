package document

// Status is the persisted lifecycle status of a document. Only StatusActive
// is ever written; expiry is a derived view, see StateOf.
type Status string

const StatusActive Status = "active"

// Title and type length bounds enforced at the transport boundary.
const (
	MaxTitleLength   = 200
	MaxDocTypeLength = 100
)

// Document is a tracked item with an expiry date.
type Document struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	DocType    string    `json:"doc_type"`
	ExpiryDate Date      `json:"expiry_date"`
	Status     Status    `json:"status"`
	CreatedAt  Timestamp `json:"created_at"`
	UpdatedAt  Timestamp `json:"updated_at"`
}

// HistoryEntry is the immutable record of one renewal.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	DocumentID    int64     `json:"document_id"`
	OldExpiryDate Date      `json:"old_expiry_date"`
	NewExpiryDate Date      `json:"new_expiry_date"`
	UpdatedAt     Timestamp `json:"updated_at"`
}
