// Package boards looks up board definitions in the offline snapshot and the
// online board API.
package boards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Mode selects which board sources a Database consults.
type Mode string

const (
	ModeOffline Mode = "OFFLINE"
	ModeOnline  Mode = "ONLINE"
	ModeAuto    Mode = "AUTO"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeOffline:
		return ModeOffline, nil
	case ModeOnline:
		return ModeOnline, nil
	default:
		return "", fmt.Errorf("invalid database mode %q: expected one of OFFLINE, ONLINE, AUTO", s)
	}
}

type Options struct {
	Mode         Mode
	APIURL       string
	APIToken     string
	SnapshotPath string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Database is constructed once per process and passed to the components that
// resolve boards. The offline snapshot and the online list are each loaded at
// most once; failed loads are retried on the next lookup.
type Database struct {
	mode         Mode
	snapshotPath string
	api          *apiClient
	log          zerolog.Logger

	mu      sync.Mutex
	offline []Board
	online  []Board
}

func NewDatabase(opts Options) (*Database, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}

	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	return &Database{
		mode:         mode,
		snapshotPath: opts.SnapshotPath,
		api:          newAPIClient(opts.APIURL, opts.APIToken, opts.HTTPClient, opts.Logger),
		log:          opts.Logger,
	}, nil
}

func (db *Database) Mode() Mode {
	return db.mode
}

// GetBoard returns the first board accepted by matching.
//
// OFFLINE consults only the snapshot. ONLINE consults only the API and
// propagates API failures. AUTO tries the snapshot first and falls back to the
// API; an API failure in AUTO mode is logged and reported as ErrUnknownBoard.
func (db *Database) GetBoard(ctx context.Context, matching func(Board) bool) (Board, error) {
	switch db.mode {
	case ModeOffline:
		return db.getOfflineBoard(matching)
	case ModeOnline:
		return db.getOnlineBoard(ctx, matching)
	}

	b, err := db.getOfflineBoard(matching)
	if err == nil {
		return b, nil
	}

	db.log.Debug().Err(err).Msg("Board not in offline snapshot, trying online database")

	b, err = db.getOnlineBoard(ctx, matching)
	if err == nil {
		return b, nil
	}

	if !errors.Is(err, ErrUnknownBoard) {
		db.log.Warn().Err(err).Msg("Online board database unavailable")
	}

	return Board{}, ErrUnknownBoard
}

func (db *Database) GetBoardByProductCode(ctx context.Context, productCode string) (Board, error) {
	return db.GetBoard(ctx, func(b Board) bool {
		return b.ProductCode == productCode
	})
}

func (db *Database) GetBoardByOnlineID(ctx context.Context, slug, targetType string) (Board, error) {
	return db.GetBoard(ctx, func(b Board) bool {
		return strings.EqualFold(b.Slug, slug) && b.TargetType == targetType
	})
}

// GetBoardByJlinkSlug matches J-Link identifiers, which are assigned by the
// probe vendor and only loosely follow Mbed naming.
func (db *Database) GetBoardByJlinkSlug(ctx context.Context, slug string) (Board, error) {
	return db.GetBoard(ctx, func(b Board) bool {
		return strings.EqualFold(b.Slug, slug) ||
			strings.EqualFold(b.BoardName, slug) ||
			strings.EqualFold(b.BoardType, slug)
	})
}

func (db *Database) getOfflineBoard(matching func(Board) bool) (Board, error) {
	db.mu.Lock()
	if db.offline == nil {
		boards, err := loadSnapshot(db.snapshotPath, db.log)
		if err != nil {
			db.mu.Unlock()
			return Board{}, err
		}
		db.offline = boards
	}
	boards := db.offline
	db.mu.Unlock()

	return find(boards, matching)
}

func (db *Database) getOnlineBoard(ctx context.Context, matching func(Board) bool) (Board, error) {
	db.mu.Lock()
	boards := db.online
	db.mu.Unlock()

	if boards == nil {
		fetched, err := db.api.fetchBoards(ctx)
		if err != nil {
			return Board{}, err
		}

		db.mu.Lock()
		db.online = fetched
		db.mu.Unlock()

		boards = fetched
	}

	return find(boards, matching)
}

func find(boards []Board, matching func(Board) bool) (Board, error) {
	for _, b := range boards {
		if matching(b) {
			return b, nil
		}
	}

	return Board{}, ErrUnknownBoard
}
