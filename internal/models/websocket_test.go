package models_test

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/models"
)

func TestParseScanControl(t *testing.T) {
	msg, err := models.ParseScanControl([]byte(`{"type":"password","password":"swordfish"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ScanTypePassword, msg.Type)
	assert.Equal(t, "swordfish", msg.Password)

	msg, err = models.ParseScanControl([]byte(`{"type":"reset"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ScanTypeReset, msg.Type)

	_, err = models.ParseScanControl([]byte(`{"type":"launch"}`))
	assert.Error(t, err)

	_, err = models.ParseScanControl([]byte(`not json`))
	assert.Error(t, err)
}

func TestScanEventWire(t *testing.T) {
	ev := models.ScanEvent{
		Type:     models.ScanTypeMessage,
		Message:  "meet at dawn",
		Strategy: "binarized",
		Polygon:  models.Points([]image.Point{{X: 1, Y: 2}}),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","message":"meet at dawn","strategy":"binarized","polygon":[{"x":1,"y":2}]}`, string(data))

	assert.Nil(t, models.Points(nil))
}
