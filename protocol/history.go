package protocol

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"educhat/models"
)

// HistoryClient fetches message history and the peer roster over the hub's
// REST endpoints. It satisfies the conversation engine's HistoryFetcher
// interface.
type HistoryClient struct {
	baseURL string
	userID  string
	httpc   *http.Client
}

// NewHistoryClient creates a client for the hub's REST API. baseURL is the
// http(s) root, without a trailing slash.
func NewHistoryClient(baseURL, userID string) *HistoryClient {
	return &HistoryClient{
		baseURL: baseURL,
		userID:  userID,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchHistory returns one page of the conversation with peerID, oldest
// first. Page 0 is the most recent page.
func (h *HistoryClient) FetchHistory(courseID, peerID string, page int) ([]models.Message, error) {
	q := url.Values{}
	q.Set("course", courseID)
	q.Set("user", h.userID)
	q.Set("peer", peerID)
	q.Set("page", strconv.Itoa(page))

	var msgs []models.Message
	if err := h.getJSON("/history", q, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Peers returns everyone the user has exchanged messages with.
func (h *HistoryClient) Peers() ([]models.Peer, error) {
	q := url.Values{}
	q.Set("user", h.userID)

	var peers []models.Peer
	if err := h.getJSON("/peers", q, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

func (h *HistoryClient) getJSON(path string, q url.Values, out interface{}) error {
	resp, err := h.httpc.Get(h.baseURL + path + "?" + q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
