package mysql

import (
	"context"
	"database/sql"

	domain "github.com/auditforge/auditforge/internal/domain/contracts"
)

type ContractRepository struct {
	db *sql.DB
}

func NewContractRepository(db *sql.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Get fetches one contract with its source
func (r *ContractRepository) Get(ctx context.Context, id string) (*domain.Contract, error) {
	const q = `
SELECT id, owner_id, name, source_code, created_at
FROM contracts
WHERE id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)

	var c domain.Contract
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.SourceCode, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
