package contracts

import "time"

// Contract is the unit under audit. Source is returned ready for analysis;
// storage-side encryption is the store's concern.
type Contract struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	SourceCode string    `json:"source_code"`
	CreatedAt  time.Time `json:"created_at"`
}
