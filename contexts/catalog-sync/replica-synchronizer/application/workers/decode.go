package workers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

// DecodeChangeEvent parses one change-channel message. The top-level id wins
// over data.id when both are present.
func DecodeChangeEvent(raw []byte) (entities.ChangeEvent, error) {
	var message ports.ChangeMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		return entities.ChangeEvent{}, fmt.Errorf("%w: %w", domainerrors.ErrMalformedEvent, err)
	}

	table := strings.TrimSpace(message.Table)
	if table == "" {
		return entities.ChangeEvent{}, fmt.Errorf("%w: missing table", domainerrors.ErrMalformedEvent)
	}
	operation, ok := entities.ParseOperation(message.Operation)
	if !ok {
		return entities.ChangeEvent{}, fmt.Errorf("%w: %q", domainerrors.ErrUnsupportedOperation, message.Operation)
	}

	data := map[string]any{}
	if trimmed := bytes.TrimSpace(message.Data); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return entities.ChangeEvent{}, fmt.Errorf("%w: data: %w", domainerrors.ErrMalformedEvent, err)
		}
	}

	id := strings.TrimSpace(message.ID)
	if id == "" {
		id = services.AsString(data[entities.ColumnID])
	}

	var occurredAt time.Time
	if ts, ok := services.AsTime(message.Timestamp); ok {
		occurredAt = ts
	}

	return entities.ChangeEvent{
		Table:     table,
		Operation: operation,
		ID:        id,
		Data:      data,
		Timestamp: occurredAt,
	}, nil
}
