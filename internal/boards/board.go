package boards

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidBoard = errors.New("invalid board entry")

const (
	TargetTypePlatform = "platform"
	TargetTypeModule   = "module"
)

// Board is a hardware platform definition from the board database. The zero
// value is the empty board, used when a device could not be identified.
type Board struct {
	BoardType     string   `json:"board_type"`
	BoardName     string   `json:"board_name"`
	ProductCode   string   `json:"product_code"`
	TargetType    string   `json:"target_type"`
	Slug          string   `json:"slug"`
	BuildVariant  []string `json:"build_variant"`
	MbedOSSupport []string `json:"mbed_os_support"`
	MbedEnabled   []string `json:"mbed_enabled"`
}

// Entry is one element of the board database, offline snapshot or online API.
type Entry struct {
	Attributes EntryAttributes `json:"attributes"`
}

type EntryAttributes struct {
	BoardType    string        `json:"board_type"`
	Name         string        `json:"name"`
	ProductCode  string        `json:"product_code"`
	TargetType   string        `json:"target_type"`
	Slug         string        `json:"slug"`
	BuildVariant []string      `json:"build_variant,omitempty"`
	Features     EntryFeatures `json:"features"`
}

type EntryFeatures struct {
	MbedOSSupport []string `json:"mbed_os_support"`
	MbedEnabled   []string `json:"mbed_enabled"`
}

func (b Board) IsEmpty() bool {
	return b.BoardType == "" &&
		b.BoardName == "" &&
		b.ProductCode == "" &&
		b.TargetType == "" &&
		b.Slug == "" &&
		len(b.BuildVariant) == 0 &&
		len(b.MbedOSSupport) == 0 &&
		len(b.MbedEnabled) == 0
}

func BoardFromOfflineEntry(e Entry) (Board, error) {
	return boardFromEntry(e, e.Attributes.BoardType)
}

// BoardFromOnlineEntry upper-cases the board type so it cross-references with
// firmware target names the same way snapshot entries do.
func BoardFromOnlineEntry(e Entry) (Board, error) {
	return boardFromEntry(e, strings.ToUpper(e.Attributes.BoardType))
}

func boardFromEntry(e Entry, boardType string) (Board, error) {
	a := e.Attributes

	if strings.TrimSpace(boardType) == "" {
		return Board{}, fmt.Errorf("%w: missing board_type (name %q)", ErrInvalidBoard, a.Name)
	}

	if a.TargetType != TargetTypePlatform && a.TargetType != TargetTypeModule {
		return Board{}, fmt.Errorf("%w: %s has target_type %q", ErrInvalidBoard, boardType, a.TargetType)
	}

	return Board{
		BoardType:     boardType,
		BoardName:     a.Name,
		ProductCode:   a.ProductCode,
		TargetType:    a.TargetType,
		Slug:          a.Slug,
		BuildVariant:  nonNil(a.BuildVariant),
		MbedOSSupport: nonNil(a.Features.MbedOSSupport),
		MbedEnabled:   nonNil(a.Features.MbedEnabled),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
