package boards

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

//go:embed data/board_database_snapshot.json
var embeddedSnapshot []byte

// loadSnapshot reads the offline board list. An empty path selects the
// snapshot compiled into the binary. Files may hold either a bare list of
// entries or a saved board API response.
func loadSnapshot(path string, log zerolog.Logger) ([]Board, error) {
	data := embeddedSnapshot

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read board snapshot: %w", err)
		}
	}

	entries, err := parseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse board snapshot: %w", err)
	}

	return boardsFromEntries(entries, BoardFromOfflineEntry, log), nil
}

func parseSnapshot(data []byte) ([]Entry, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var resp apiResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, err
		}
		return resp.Data, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func boardsFromEntries(entries []Entry, convert func(Entry) (Board, error), log zerolog.Logger) []Board {
	boards := make([]Board, 0, len(entries))

	for _, e := range entries {
		b, err := convert(e)
		if err != nil {
			log.Debug().Err(err).Msg("Skipping board database entry")
			continue
		}
		boards = append(boards, b)
	}

	return boards
}
