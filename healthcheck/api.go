// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package healthcheck reports normalization runs to healthchecks.io so that a
// scheduled run that stops completing raises an alert.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvfinancials/pkginfo"
	"github.com/rs/zerolog/log"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

type Signal string

const (
	SignalStart   Signal = "start"
	SignalSuccess Signal = ""
	SignalFail    Signal = "fail"
)

// Client talks to the management and ping APIs of healthchecks.io
type Client struct {
	APIKey  string
	APIURL  string
	PingURL string

	client *resty.Client
}

func New(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		APIURL:  "https://healthchecks.io/api/v3",
		PingURL: "https://hc-ping.com",
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", pkginfo.UserAgent()),
	}
}

type createReq struct {
	Name     string   `json:"name"`
	Grace    int      `json:"grace"`
	Schedule string   `json:"schedule"`
	Slug     string   `json:"slug"`
	Tags     string   `json:"tags"`
	Timezone string   `json:"tz"`
	Unique   []string `json:"unique"`
}

type createResp struct {
	PingURL string `json:"ping_url"`
}

// Create registers a check for a scheduled run and returns its id. Creating
// a check whose name already exists returns the existing check.
func (hc *Client) Create(ctx context.Context, name string, slug string, tags []string, schedule string) (string, error) {
	command := createReq{
		Name:     name,
		Slug:     slug,
		Tags:     strings.Join(tags, " "),
		Grace:    3600,
		Schedule: schedule,
		Timezone: "America/New_York",
		Unique:   []string{"name"},
	}

	result := createResp{}

	resp, err := hc.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", hc.APIKey).
		SetBody(command).
		SetResult(&result).
		Post(fmt.Sprintf("%s/checks/", hc.APIURL))

	if err != nil {
		return "", err
	}

	if resp.StatusCode() > 201 {
		return "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	checkID := strings.Split(result.PingURL, "/")
	return checkID[len(checkID)-1], nil
}

// Ping signals the state of a run to the check identified by id. The body is
// attached to the ping and shows up in the check's event log.
func (hc *Client) Ping(ctx context.Context, id string, signal Signal, body string) error {
	if id == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/%s", hc.PingURL, id)
	if signal != SignalSuccess {
		endpoint = fmt.Sprintf("%s/%s", endpoint, signal)
	}

	resp, err := hc.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)

	if err != nil {
		log.Warn().Err(err).Str("CheckID", id).Msg("healthcheck ping failed")
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
