package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"home-hub/internal/domain"
)

// ModeRepository reads the mode table fresh from the document store on every
// call, so edits made by configuration tooling are picked up without a restart.
type ModeRepository struct {
	docs DocumentStore
}

func NewModeRepository(docs DocumentStore) *ModeRepository {
	return &ModeRepository{docs: docs}
}

func (r *ModeRepository) Load(ctx context.Context) (domain.ModeTable, error) {
	raw, err := r.docs.Load(ctx, ModeDocument)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", ModeDocument, err)
	}

	var table domain.ModeTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ModeDocument, err)
	}
	return table, nil
}

func (r *ModeRepository) Save(ctx context.Context, table domain.ModeTable) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", ModeDocument, err)
	}
	return r.docs.Save(ctx, ModeDocument, raw)
}
