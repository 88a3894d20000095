package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

func TestChecksumKeyOrderIndependent(t *testing.T) {
	first := map[string]any{}
	first["a"] = 1
	first["b"] = 2

	second := map[string]any{}
	second["b"] = 2
	second["a"] = 1

	assert.Equal(t, Checksum(first), Checksum(second))
}

func TestChecksumSensitiveToValues(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	changed := map[string]any{"a": 1, "b": 3}

	assert.NotEqual(t, Checksum(base), Checksum(changed))
}

func TestChecksumNestedPayload(t *testing.T) {
	first := map[string]any{
		"patient": map[string]any{"name": "Asha", "age": 34},
		"symptoms": []any{"fever"},
	}
	second := map[string]any{
		"symptoms": []any{"fever"},
		"patient": map[string]any{"age": 34, "name": "Asha"},
	}

	assert.Equal(t, Checksum(first), Checksum(second))
}

func TestChecksumStableAcrossCalls(t *testing.T) {
	payload := map[string]any{"id": "c1", "riskScore": 42}

	assert.Equal(t, Checksum(payload), Checksum(payload))
}

func TestNextVersion(t *testing.T) {
	assert.Equal(t, 1, NextVersion(nil))
	assert.Equal(t, 6, NextVersion(&model.SyncableRecord{Version: 5}))
}
