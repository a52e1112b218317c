package boards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbedtools/internal/logger"
)

type fakeAPI struct {
	server *httptest.Server
	hits   atomic.Int32
	auth   atomic.Value
}

func newFakeAPI(t *testing.T, status int, body string) *fakeAPI {
	t.Helper()

	api := &fakeAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		api.auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(api.server.Close)

	return api
}

func onlineBody(t *testing.T, entries ...Entry) string {
	t.Helper()

	data, err := json.Marshal(apiResponse{Data: entries})
	require.NoError(t, err)

	return string(data)
}

func onlineOnlyEntry() Entry {
	return Entry{Attributes: EntryAttributes{
		BoardType:   "online_only",
		Name:        "Online Only Board",
		ProductCode: "9999",
		TargetType:  TargetTypePlatform,
		Slug:        "Online-Only",
		Features: EntryFeatures{
			MbedOSSupport: []string{"mbed OS 6"},
			MbedEnabled:   []string{"Baseline"},
		},
	}}
}

func newTestDatabase(t *testing.T, mode Mode, apiURL string) *Database {
	t.Helper()

	db, err := NewDatabase(Options{
		Mode:     mode,
		APIURL:   apiURL,
		APIToken: "secret",
		Logger:   logger.NewTestLogger(),
	})
	require.NoError(t, err)

	return db
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{input: "", expected: ModeAuto},
		{input: "auto", expected: ModeAuto},
		{input: "OFFLINE", expected: ModeOffline},
		{input: " online ", expected: ModeOnline},
		{input: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestNewDatabase_InvalidMode(t *testing.T) {
	_, err := NewDatabase(Options{Mode: "SOMETIMES"})
	require.Error(t, err)
}

func TestGetBoard_OfflineHit(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, onlineBody(t))
	db := newTestDatabase(t, ModeAuto, api.server.URL)

	b, err := db.GetBoardByProductCode(context.Background(), "0240")
	require.NoError(t, err)

	assert.Equal(t, "K64F", b.BoardType)
	assert.Equal(t, "FRDM-K64F", b.BoardName)
	assert.Equal(t, TargetTypePlatform, b.TargetType)
	assert.Contains(t, b.MbedOSSupport, "mbed OS 6")
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestGetBoard_OfflineModeNeverCallsAPI(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, onlineBody(t, onlineOnlyEntry()))
	db := newTestDatabase(t, ModeOffline, api.server.URL)

	_, err := db.GetBoardByProductCode(context.Background(), "9999")
	require.ErrorIs(t, err, ErrUnknownBoard)
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestGetBoard_AutoFallsBackToOnline(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, onlineBody(t, onlineOnlyEntry()))
	db := newTestDatabase(t, ModeAuto, api.server.URL)

	b, err := db.GetBoardByProductCode(context.Background(), "9999")
	require.NoError(t, err)

	assert.Equal(t, "ONLINE_ONLY", b.BoardType)
	assert.Equal(t, int32(1), api.hits.Load())
	assert.Equal(t, "Bearer secret", api.auth.Load())

	// The online list is cached for the lifetime of the database.
	_, err = db.GetBoardByProductCode(context.Background(), "9999")
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.hits.Load())
}

func TestGetBoard_AutoToleratesOutage(t *testing.T) {
	api := newFakeAPI(t, http.StatusInternalServerError, "")
	db := newTestDatabase(t, ModeAuto, api.server.URL)

	_, err := db.GetBoardByProductCode(context.Background(), "9999")
	require.ErrorIs(t, err, ErrUnknownBoard)
}

func TestGetBoard_AutoMissEverywhere(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, onlineBody(t, onlineOnlyEntry()))
	db := newTestDatabase(t, ModeAuto, api.server.URL)

	_, err := db.GetBoardByProductCode(context.Background(), "1234")
	require.ErrorIs(t, err, ErrUnknownBoard)
}

func TestGetBoard_OnlineModeErrors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		api := newFakeAPI(t, http.StatusForbidden, "")
		db := newTestDatabase(t, ModeOnline, api.server.URL)

		_, err := db.GetBoardByProductCode(context.Background(), "0240")

		var apiErr *BoardAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.NotErrorIs(t, err, ErrUnknownBoard)
	})

	t.Run("bad json", func(t *testing.T) {
		api := newFakeAPI(t, http.StatusOK, "{not json")
		db := newTestDatabase(t, ModeOnline, api.server.URL)

		_, err := db.GetBoardByProductCode(context.Background(), "0240")

		var jsonErr *ResponseJSONError
		require.ErrorAs(t, err, &jsonErr)
	})

	t.Run("unreachable", func(t *testing.T) {
		api := newFakeAPI(t, http.StatusOK, "")
		url := api.server.URL
		api.server.Close()

		db := newTestDatabase(t, ModeOnline, url)
		_, err := db.GetBoardByProductCode(context.Background(), "0240")

		var apiErr *BoardAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Zero(t, apiErr.StatusCode)
	})
}

func TestGetBoard_OnlineModeSkipsSnapshot(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, onlineBody(t, onlineOnlyEntry()))
	db := newTestDatabase(t, ModeOnline, api.server.URL)

	_, err := db.GetBoardByProductCode(context.Background(), "0240")
	require.ErrorIs(t, err, ErrUnknownBoard)
	assert.Equal(t, int32(1), api.hits.Load())
}

func TestGetBoardByOnlineID(t *testing.T) {
	db := newTestDatabase(t, ModeOffline, "")

	b, err := db.GetBoardByOnlineID(context.Background(), "frdm-k64f", TargetTypePlatform)
	require.NoError(t, err)
	assert.Equal(t, "K64F", b.BoardType)

	_, err = db.GetBoardByOnlineID(context.Background(), "FRDM-K64F", TargetTypeModule)
	require.ErrorIs(t, err, ErrUnknownBoard)
}

func TestGetBoardByJlinkSlug(t *testing.T) {
	db := newTestDatabase(t, ModeOffline, "")

	tests := []struct {
		slug     string
		expected string
	}{
		{slug: "kl25z", expected: "KL25Z"},
		{slug: "frdm-kl25z", expected: "KL25Z"},
		{slug: "nucleo-f401re", expected: "NUCLEO_F401RE"},
		{slug: "nucleo_f401re", expected: "NUCLEO_F401RE"},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			b, err := db.GetBoardByJlinkSlug(context.Background(), tt.slug)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, b.BoardType)
		})
	}
}

func TestSnapshotPathOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	data, err := json.Marshal([]Entry{onlineOnlyEntry()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	db, err := NewDatabase(Options{Mode: ModeOffline, SnapshotPath: path, Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	b, err := db.GetBoardByProductCode(context.Background(), "9999")
	require.NoError(t, err)
	assert.Equal(t, "online_only", b.BoardType)
}

func TestSnapshotPathAcceptsAPIResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.json")

	data, err := json.Marshal(apiResponse{Data: []Entry{onlineOnlyEntry()}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append([]byte("\n  "), data...), 0o600))

	db, err := NewDatabase(Options{Mode: ModeOffline, SnapshotPath: path, Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	b, err := db.GetBoardByProductCode(context.Background(), "9999")
	require.NoError(t, err)
	assert.Equal(t, "online_only", b.BoardType)

	_, err = db.GetBoardByProductCode(context.Background(), "0240")
	assert.ErrorIs(t, err, ErrUnknownBoard)
}

func TestEmbeddedSnapshotParses(t *testing.T) {
	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(embeddedSnapshot, &raw))

	boards, err := loadSnapshot("", logger.NewTestLogger())
	require.NoError(t, err)
	assert.Len(t, boards, len(raw))
}

func TestSnapshotPathMissing(t *testing.T) {
	db, err := NewDatabase(Options{Mode: ModeOffline, SnapshotPath: filepath.Join(t.TempDir(), "nope.json"), Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	_, err = db.GetBoardByProductCode(context.Background(), "0240")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownBoard)
}
