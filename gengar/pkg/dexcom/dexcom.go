package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cgmev/gengar/defs"

	"go.uber.org/zap"
)

const (
	appID            = "d89443d2-327c-4a6f-89e5-496bbb0317db"
	baseUrl          = "https://shareous1.dexcom.com/ShareWebServices/Services"
	loginEndpoint    = "General/LoginPublisherAccountByName"
	readingsEndpoint = "Publisher/ReadPublisherLatestGlucoseValues"

	// One day's worth.
	MinuteLimit = 1440
	CountLimit  = 288
)

type Source interface {
	Readings(ctx context.Context, minutes, maxCount int) ([]*defs.Reading, error)
}

type Client struct {
	client      *http.Client
	logger      *zap.Logger
	accountName string
	password    string
	patient     string
	sessionID   string
}

type LoginRequest struct {
	AccountName   string `json:"accountName"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

type Reading struct {
	WT          string  `json:"WT"`
	SystemTime  string  `json:"ST"`
	DisplayTime string  `json:"DT"`
	Value       float64 `json:"Value"`
	Trend       string  `json:"Trend"`
}

// New creates a client whose readings are attributed to patient.
func New(accountName, password, patient string, logger *zap.Logger) *Client {
	return &Client{
		client:      &http.Client{},
		logger:      logger,
		accountName: accountName,
		password:    password,
		patient:     patient,
	}
}

// Readings fetches the latest readings from Dexcom's Share API in mg/dL,
// newest first. A new session is created when the current one is rejected.
func (c *Client) Readings(ctx context.Context, minutes, maxCount int) ([]*defs.Reading, error) {
	rs, err := c.readings(ctx, minutes, maxCount)
	if err == nil {
		return rs, nil
	}
	if _, err = c.CreateSession(ctx); err != nil {
		return nil, fmt.Errorf("unable to create session: %w", err)
	}
	return c.readings(ctx, minutes, maxCount)
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	lreq := &LoginRequest{
		AccountName:   c.accountName,
		Password:      c.password,
		ApplicationID: appID,
	}

	b, err := json.Marshal(lreq)
	if err != nil {
		return "", err
	}

	c.logger.Debug("making login request for sessionID", zap.String("account", c.accountName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseUrl+"/"+loginEndpoint, bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	c.sessionID = strings.Trim(string(body), "\"")

	c.logger.Debug("successfully obtained sessionID")

	return c.sessionID, nil
}

func (c *Client) readings(ctx context.Context, minutes, maxCount int) ([]*defs.Reading, error) {
	if minutes > MinuteLimit || maxCount > CountLimit {
		return nil, fmt.Errorf("window too large: minutes %d, maxCount %d", minutes, maxCount)
	}
	if c.sessionID == "" {
		return nil, fmt.Errorf("no session")
	}

	params := url.Values{
		"sessionId": {c.sessionID},
		"minutes":   {strconv.Itoa(minutes)},
		"maxCount":  {strconv.Itoa(maxCount)},
	}

	c.logger.Debug("making fetch request",
		zap.Int("minutes", minutes),
		zap.Int("maximum count", maxCount),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseUrl+"/"+readingsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("readings request failed with status %d", resp.StatusCode)
	}

	var readings []*Reading
	if err = json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		c.logger.Debug("failed to decode readings response", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("received readings from share API", zap.Int("count", len(readings)))

	rs := make([]*defs.Reading, len(readings))
	for i, r := range readings {
		tr, err := c.transform(r)
		if err != nil {
			return nil, err
		}
		rs[i] = tr
	}

	return rs, nil
}

func (c *Client) transform(r *Reading) (*defs.Reading, error) {
	if len(r.WT) < 4 {
		return nil, fmt.Errorf("malformed reading time %q", r.WT)
	}
	parsedTime := strings.Trim(r.WT[4:], "()")
	unix, err := strconv.ParseInt(parsedTime, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed reading time %q: %w", r.WT, err)
	}

	return &defs.Reading{
		Patient: c.patient,
		Time:    time.Unix(unix/1000, 0),
		MgDL:    r.Value,
		Trend:   r.Trend,
	}, nil
}
