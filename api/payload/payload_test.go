package payload

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyboard/core"
)

func TestDecodeUpdate(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"playerId":"p1","playerName":"Alice","region":"EU","mode":"solo","delta":50}`))
	require.NoError(t, err)
	assert.Equal(t, core.ScoreUpdate{PlayerID: "p1", PlayerName: "Alice", Region: "EU", Mode: "solo", Delta: 50}, u)

	u, err = DecodeUpdate([]byte(`{"playerId":"p1","playerName":"Alice","region":"EU","mode":"solo","delta":-7}`))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), u.Delta)
}

func TestDecodeUpdateRejectsBadDelta(t *testing.T) {
	for name, body := range map[string]string{
		"string":   `{"playerId":"p1","playerName":"A","region":"EU","mode":"solo","delta":"abc"}`,
		"numeric":  `{"playerId":"p1","playerName":"A","region":"EU","mode":"solo","delta":"10"}`,
		"fraction": `{"playerId":"p1","playerName":"A","region":"EU","mode":"solo","delta":1.5}`,
		"missing":  `{"playerId":"p1","playerName":"A","region":"EU","mode":"solo"}`,
		"bool":     `{"playerId":"p1","playerName":"A","region":"EU","mode":"solo","delta":true}`,
	} {
		_, err := DecodeUpdate([]byte(body))
		assert.ErrorIs(t, err, core.ErrValidation, name)
	}
}

func TestDecodeUpdateRejectsMissingFields(t *testing.T) {
	_, err := DecodeUpdate([]byte(`{"playerId":"p1","playerName":"Alice","mode":"solo","delta":5}`))
	require.Error(t, err)
	assert.Equal(t, "region is required", err.Error())

	_, err = DecodeUpdate([]byte(`not json`))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDecodeQuery(t *testing.T) {
	q, err := DecodeQuery([]byte(`{"mode":"solo","region":"EU","n":5}`))
	require.NoError(t, err)
	assert.Equal(t, core.Query{Mode: "solo", Region: "EU", Limit: 5}, q)

	q, err = DecodeQuery(nil)
	require.NoError(t, err)
	assert.Equal(t, core.Query{}, q)

	_, err = DecodeQuery([]byte(`{"mode":"solo","n":"x"}`))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestFailure(t *testing.T) {
	status, body := Failure(core.Invalid("mode", "is required"), MsgLeaderboardFailed)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "mode is required", body.Error)
	assert.False(t, body.OK)

	status, body = Failure(core.NewStorageError("top n", errors.New("secret dsn leaked")), MsgLeaderboardFailed)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, MsgLeaderboardFailed, body.Error)
}

func TestTopNeverNil(t *testing.T) {
	resp := Top(core.LeaderboardView{DateKey: "2024-05-01"})
	assert.NotNil(t, resp.Top)
	assert.True(t, resp.OK)
}
