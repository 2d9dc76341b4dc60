package zepp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Band data constants expected by the upload endpoint.
const (
	lastSyncDataTime = "1597306380"
	lastDeviceID     = "DA932FFFFE8816E7"
	deviceSource     = 24
	dailyGoal        = 8000
)

type stepSummary struct {
	Total    int     `json:"ttl"`
	Distance int     `json:"dis"`
	Calories int     `json:"cal"`
	Walk     int     `json:"wk"`
	Run      int     `json:"rn"`
	RunDist  int     `json:"runDist"`
	RunCal   int     `json:"runCal"`
	Stage    []int64 `json:"stage"`
}

type daySummary struct {
	Version  int         `json:"v"`
	Steps    stepSummary `json:"stp"`
	Goal     int         `json:"goal"`
	Timezone string      `json:"tz"`
}

type bandEntry struct {
	DataHR  string `json:"data_hr"`
	Date    string `json:"date"`
	Summary string `json:"summary"`
	Source  int    `json:"source"`
	Type    int    `json:"type"`
	UUID    string `json:"uuid"`
}

// bandData builds the data_json payload for one day's step count.
func bandData(date string, steps int, tzOffset int) (string, error) {
	summary, err := json.Marshal(daySummary{
		Version: 6,
		Steps: stepSummary{
			Total:    steps,
			Distance: steps * 7 / 10,
			Calories: steps / 25,
			Walk:     steps / 100,
			Stage:    []int64{},
		},
		Goal:     dailyGoal,
		Timezone: strconv.Itoa(tzOffset),
	})
	if err != nil {
		return "", err
	}
	data, err := json.Marshal([]bandEntry{{
		Date:    date,
		Summary: string(summary),
		Source:  deviceSource,
		UUID:    lastDeviceID,
	}})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SubmitSteps uploads steps as today's total and returns the service message.
func (c *Client) SubmitSteps(ctx context.Context, steps int, appToken, userID string) (string, error) {
	now := c.clock.Now().In(c.loc)
	_, offset := now.Zone()

	payload, err := bandData(now.Format("2006-01-02"), steps, offset)
	if err != nil {
		return "", fmt.Errorf("building band data: %w", err)
	}

	q := url.Values{
		"t": {strconv.FormatInt(now.UnixMilli(), 10)},
		"r": {uuid.NewString()},
	}
	form := url.Values{
		"userid":              {userID},
		"last_sync_data_time": {lastSyncDataTime},
		"device_type":         {"0"},
		"last_deviceid":       {lastDeviceID},
		"data_json":           {payload},
	}

	resp, body, err := c.postForm(ctx, c.ep.API+"/v1/data/band_data.json?"+q.Encode(), form, appTokenHeader(appToken))
	if err != nil {
		return "", err
	}
	var cr codeResponse
	if err := decodeJSON("submit steps", resp, body, &cr); err != nil {
		return "", err
	}
	if cr.Code != 1 {
		return cr.Message, &APIError{Op: "submit steps", Status: resp.StatusCode, Code: strconv.Itoa(cr.Code), Message: cr.Message}
	}
	return cr.Message, nil
}
