package boards

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL         = "https://os.mbed.com/api/v4/targets/all"
	defaultRequestTimeout = 30 * time.Second
)

type apiClient struct {
	url    string
	token  string
	client *http.Client
	log    zerolog.Logger
}

type apiResponse struct {
	Data []Entry `json:"data"`
}

func newAPIClient(url, token string, client *http.Client, log zerolog.Logger) *apiClient {
	if url == "" {
		url = DefaultAPIURL
	}

	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &apiClient{url: url, token: token, client: client, log: log}
}

// fetchBoards downloads every target from the online API. Transport failures
// and non-200 statuses come back as *BoardAPIError, undecodable bodies as
// *ResponseJSONError; both carry a stack trace.
func (c *apiClient) fetchBoards(ctx context.Context) ([]Board, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, pkgerrors.WithStack(&BoardAPIError{URL: c.url, Err: err})
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", c.url).Bool("authenticated", c.token != "").Msg("Requesting board database")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pkgerrors.WithStack(&BoardAPIError{URL: c.url, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, pkgerrors.WithStack(&BoardAPIError{URL: c.url, StatusCode: resp.StatusCode})
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pkgerrors.WithStack(&ResponseJSONError{URL: c.url, Err: err})
	}

	boards := boardsFromEntries(body.Data, BoardFromOnlineEntry, c.log)
	c.log.Debug().Int("boards", len(boards)).Msg("Loaded online board database")

	return boards, nil
}
