package session

import (
	"encoding/json"
	"fmt"
)

func decodeRecord(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	return rec, nil
}
