package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/breaker"
)

// ErrNotFound is the collaborator's domain answer: the recipient does
// not exist. It passes through the breaker fallback untouched.
var ErrNotFound = errors.New("mailer: recipient not found")

// ErrUnavailable covers everything else: an open breaker, a transport
// failure, or an unexpected response from the email service.
var ErrUnavailable = errors.New("mailer: email service unavailable")

// SendResult mirrors the email service's response; the fallback
// synthesizes a QUEUED result when the service cannot be reached.
type SendResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client calls the email service. Each remote call-site runs through
// its own circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	checkBreaker *breaker.Breaker
	sendBreaker  *breaker.Breaker
}

func New(baseURL string, logger *slog.Logger, cfg breaker.Config) *Client {
	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: 5 * time.Second},
		logger:       logger,
		checkBreaker: breaker.New("email-service.check", cfg),
		sendBreaker:  breaker.New("email-service.send", cfg),
	}
}

// CheckExists asks the email service whether the address is a known
// recipient. NotFound survives the breaker; an open breaker or an
// infrastructure failure is normalized to ErrUnavailable.
func (c *Client) CheckExists(ctx context.Context, email string) error {
	return c.checkBreaker.Guard(ctx,
		func(ctx context.Context) error {
			return c.checkExists(ctx, email)
		},
		func(err error) error {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			if breaker.IsOpenError(err) {
				c.logger.Warn("email service circuit open", "email", email)
			} else {
				c.logger.Warn("email service check failed", "email", email, "err", err)
			}
			return ErrUnavailable
		})
}

// Send delivers a message through the email service. When the service
// is down or the breaker is open the message is reported as QUEUED
// rather than failed; an unknown recipient still surfaces as NotFound.
func (c *Client) Send(ctx context.Context, email, message string) (SendResult, error) {
	var res SendResult
	err := c.sendBreaker.Guard(ctx,
		func(ctx context.Context) error {
			out, err := c.send(ctx, email, message)
			if err != nil {
				return err
			}
			res = out
			return nil
		},
		func(err error) error {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			c.logger.Warn("email service unavailable, reporting queued", "email", email, "err", err)
			res = SendResult{
				Status:  "QUEUED",
				Message: "email queued due to service temporary unavailability",
			}
			return nil
		})
	return res, err
}

func (c *Client) checkExists(ctx context.Context, email string) error {
	u := c.baseURL + "/api/email/check?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("email service check: unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) send(ctx context.Context, email, message string) (SendResult, error) {
	body, err := json.Marshal(map[string]string{
		"email":   email,
		"message": message,
	})
	if err != nil {
		return SendResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/email", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out SendResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return SendResult{}, err
		}
		return out, nil
	case http.StatusNotFound:
		return SendResult{}, ErrNotFound
	default:
		return SendResult{}, fmt.Errorf("email service send: unexpected status %d", resp.StatusCode)
	}
}
