package devices

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ARMmbed/mbedtools/internal/boards"
)

// BoardDatabase is the subset of *boards.Database used for resolution.
type BoardDatabase interface {
	GetBoardByProductCode(ctx context.Context, productCode string) (boards.Board, error)
	GetBoardByOnlineID(ctx context.Context, slug, targetType string) (boards.Board, error)
	GetBoardByJlinkSlug(ctx context.Context, slug string) (boards.Board, error)
}

const serialProductCodeLength = 4

// ResolveBoard looks the board up by product code, then by online id, then by
// the first four characters of the serial number. The first hit wins. A miss
// at every step returns ErrNoBoardForCandidate; any other database error is
// returned as *ResolveBoardError without trying the remaining steps.
//
// The serial number prefix is not checked for being a plausible product code,
// so an unrelated board whose code collides with it will be reported.
func ResolveBoard(ctx context.Context, db BoardDatabase, productCode string, onlineID *OnlineID, serialNumber string, log zerolog.Logger) (boards.Board, error) {
	if productCode != "" {
		board, err := db.GetBoardByProductCode(ctx, productCode)
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, boards.ErrUnknownBoard) {
			return boards.Board{}, &ResolveBoardError{SerialNumber: serialNumber, Err: err}
		}
		log.Debug().Str("product_code", productCode).Msg("Unable to identify board by product code")
	}

	if onlineID != nil {
		var (
			board boards.Board
			err   error
		)
		if onlineID.Source == OnlineIDSourceJlink {
			board, err = db.GetBoardByJlinkSlug(ctx, onlineID.Slug)
		} else {
			board, err = db.GetBoardByOnlineID(ctx, onlineID.Slug, onlineID.TargetType)
		}
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, boards.ErrUnknownBoard) {
			return boards.Board{}, &ResolveBoardError{SerialNumber: serialNumber, Err: err}
		}
		log.Debug().
			Str("slug", onlineID.Slug).
			Str("target_type", onlineID.TargetType).
			Str("source", onlineID.Source).
			Msg("Unable to identify board by online id")
	}

	if len(serialNumber) >= serialProductCodeLength {
		code := serialNumber[:serialProductCodeLength]

		board, err := db.GetBoardByProductCode(ctx, code)
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, boards.ErrUnknownBoard) {
			return boards.Board{}, &ResolveBoardError{SerialNumber: serialNumber, Err: err}
		}
		log.Debug().Str("product_code", code).Msg("Unable to identify board by serial number")
	}

	return boards.Board{}, ErrNoBoardForCandidate
}
