package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/random-winner-game/internal/domain/game"
	"github.com/R3E-Network/random-winner-game/internal/errors"
)

const latestGameResponse = `{
  "data": {
    "games": [{
      "id": "3",
      "maxPlayers": 2,
      "entryFee": "10000000000000000",
      "winner": null,
      "players": ["0x00000000000000000000000000000000000000a1"]
    }]
  }
}`

func subgraph(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, LatestGameQuery, req["query"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = New(Config{URL: "http://subgraph.test", RPS: -1}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestClient_LatestGame(t *testing.T) {
	server, _ := subgraph(t, http.StatusOK, latestGameResponse)
	client, err := New(Config{URL: server.URL}, nil)
	require.NoError(t, err)

	snap, err := client.FetchLatestGame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", snap.ID)
	assert.Equal(t, 2, snap.MaxPlayers)
	assert.Equal(t, "10000000000000000", snap.EntryFee.String())
	assert.Nil(t, snap.Winner)
	assert.Equal(t, []common.Address{common.HexToAddress("0xa1")}, snap.Players)
}

func TestClient_NoGames(t *testing.T) {
	server, _ := subgraph(t, http.StatusOK, `{"data":{"games":[]}}`)
	client, err := New(Config{URL: server.URL}, nil)
	require.NoError(t, err)

	_, err = client.FetchLatestGame(context.Background())
	assert.ErrorIs(t, err, game.ErrNoGame)
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadRequest, `{"message":"bad"}`},
		{"graphql errors", http.StatusOK, `{"errors":[{"message":"indexing_error"}]}`},
		{"not json", http.StatusOK, `<html>`},
		{"missing data", http.StatusOK, `{"data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := subgraph(t, tt.status, tt.body)
			client, err := New(Config{URL: server.URL}, nil)
			require.NoError(t, err)

			_, err = client.FetchLatestGame(context.Background())
			assert.ErrorIs(t, err, errors.ErrIndexerFetchFailed)
			assert.NotErrorIs(t, err, game.ErrNoGame)
		})
	}
}

func TestClient_RateLimited(t *testing.T) {
	server, calls := subgraph(t, http.StatusOK, latestGameResponse)
	client, err := New(Config{URL: server.URL, RPS: 1}, nil)
	require.NoError(t, err)

	_, err = client.FetchLatestGame(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FetchLatestGame(ctx)
	assert.ErrorIs(t, err, errors.ErrIndexerFetchFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestParseLatestGame(t *testing.T) {
	t.Run("ended game", func(t *testing.T) {
		snap, err := ParseLatestGame([]byte(`{"data":{"games":[{"id":"9","maxPlayers":"2","entryFee":"1",
			"winner":"0x00000000000000000000000000000000000000b2",
			"players":["0x00000000000000000000000000000000000000a1","0x00000000000000000000000000000000000000b2"]}]}}`))
		require.NoError(t, err)
		require.NotNil(t, snap.Winner)
		assert.Equal(t, common.HexToAddress("0xb2"), *snap.Winner)
		assert.Equal(t, 2, snap.MaxPlayers)
		assert.True(t, snap.Full())
	})

	t.Run("malformed player", func(t *testing.T) {
		_, err := ParseLatestGame([]byte(`{"data":{"games":[{"id":"1","players":["nope"]}]}}`))
		assert.Error(t, err)
	})

	t.Run("malformed fee", func(t *testing.T) {
		_, err := ParseLatestGame([]byte(`{"data":{"games":[{"id":"1","entryFee":"1.5","players":[]}]}}`))
		assert.Error(t, err)
	})
}

func TestClient_DoesNotRetry(t *testing.T) {
	server, calls := subgraph(t, http.StatusServiceUnavailable, `{}`)
	client, err := New(Config{URL: server.URL}, nil)
	require.NoError(t, err)

	_, err = client.FetchLatestGame(context.Background())
	assert.ErrorIs(t, err, errors.ErrIndexerFetchFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "the next poll tick is the retry")
}
